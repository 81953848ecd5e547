package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/duogrove/server/dates"
	"github.com/duogrove/server/db"
	"github.com/duogrove/server/models"
)

var testStart = time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)

func seedTestDuo(t *testing.T, store *db.MemoryStore, frequency models.Frequency) (*models.DuoConnection, *models.DuoHabit) {
	t.Helper()

	conn := &models.DuoConnection{
		ID:        "duo-1",
		MemberAID: "ana",
		MemberBID: "ben",
		TreeStage: models.StageSprout,
		CreatedAt: testStart,
	}
	habit := &models.DuoHabit{
		ID:        "habit-1",
		DuoID:     conn.ID,
		Name:      "Morning walk",
		Frequency: frequency,
		CreatedAt: testStart,
	}
	tree := &models.Tree{
		ID:        "tree-1",
		DuoID:     conn.ID,
		Stage:     models.StageSprout,
		CreatedAt: testStart,
	}

	if err := store.InsertConnection(conn); err != nil {
		t.Fatalf("insert connection: %v", err)
	}
	if err := store.InsertHabit(habit); err != nil {
		t.Fatalf("insert habit: %v", err)
	}
	if err := store.InsertTree(tree); err != nil {
		t.Fatalf("insert tree: %v", err)
	}

	return conn, habit
}

func TestRecordCheckinFirstMemberAlone(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyDaily)

	res, err := eng.RecordCheckin(habit.ID, true, testStart)

	assert.NoError(t, err)
	assert.False(t, res.Updated)

	got, _ := store.Habit(habit.ID)
	assert.Equal(t, testStart, *got.LastCheckinA)
	assert.Nil(t, got.LastCheckinB)

	conn, _ := store.Connection("duo-1")
	assert.Equal(t, 0, conn.TrustScore)
	assert.Equal(t, 0, conn.Streak)
}

func TestRecordCheckinMutualCompletion(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyDaily)

	_, err := eng.RecordCheckin(habit.ID, true, testStart)
	assert.NoError(t, err)

	res, err := eng.RecordCheckin(habit.ID, false, testStart.Add(time.Hour))
	assert.NoError(t, err)
	assert.True(t, res.Updated)

	conn, _ := store.Connection("duo-1")
	assert.Equal(t, 1, conn.TrustScore)
	assert.Equal(t, 1, conn.Streak)
	assert.Equal(t, dates.StartOfDay(testStart), *conn.StreakCreditedAt)

	got, _ := store.Habit(habit.ID)
	rec, ok := got.History[dates.DayKey(testStart)]
	assert.True(t, ok)
	assert.False(t, rec.TriggeredByA) // member B closed the loop
	assert.True(t, rec.MemberA)
	assert.True(t, rec.MemberB)
}

func TestRecordCheckinSecondMutualSamePeriodNotCredited(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyDaily)

	_, err := eng.RecordCheckin(habit.ID, true, testStart)
	assert.NoError(t, err)
	res, err := eng.RecordCheckin(habit.ID, false, testStart.Add(time.Hour))
	assert.NoError(t, err)
	assert.True(t, res.Updated)

	// A checks in again the same day: both slots are inside the window but
	// the day is already credited.
	res, err = eng.RecordCheckin(habit.ID, true, testStart.Add(2*time.Hour))
	assert.NoError(t, err)
	assert.False(t, res.Updated)

	conn, _ := store.Connection("duo-1")
	assert.Equal(t, 1, conn.TrustScore)
	assert.Equal(t, 1, conn.Streak)
}

func TestTwoHabitsSameDayTrustTwiceStreakOnce(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyDaily)

	second, err := eng.CreateHabit("duo-1", "Evening stretch", models.FrequencyDaily, testStart)
	assert.NoError(t, err)

	for _, h := range []string{habit.ID, second.ID} {
		_, err := eng.RecordCheckin(h, true, testStart)
		assert.NoError(t, err)
		res, err := eng.RecordCheckin(h, false, testStart.Add(time.Hour))
		assert.NoError(t, err)
		assert.True(t, res.Updated)
	}

	// Trust counts every mutual completion, the streak counts distinct days.
	conn, _ := store.Connection("duo-1")
	assert.Equal(t, 2, conn.TrustScore)
	assert.Equal(t, 1, conn.Streak)
}

func TestRecordCheckinPartnerJustOverWindow(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyDaily)

	_, err := eng.RecordCheckin(habit.ID, true, testStart)
	assert.NoError(t, err)

	// 24h plus one millisecond after member A: no mutual completion.
	res, err := eng.RecordCheckin(habit.ID, false, testStart.Add(24*time.Hour+time.Millisecond))
	assert.NoError(t, err)
	assert.False(t, res.Updated)

	conn, _ := store.Connection("duo-1")
	assert.Equal(t, 0, conn.TrustScore)
	assert.Equal(t, 0, conn.Streak)
}

func TestRecordCheckinPartnerExactlyAtWindow(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyDaily)

	_, err := eng.RecordCheckin(habit.ID, true, testStart)
	assert.NoError(t, err)

	res, err := eng.RecordCheckin(habit.ID, false, testStart.Add(24*time.Hour))
	assert.NoError(t, err)
	assert.True(t, res.Updated)
}

func TestRecordCheckinWeeklyWindow(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyWeekly)

	_, err := eng.RecordCheckin(habit.ID, true, testStart)
	assert.NoError(t, err)

	// Three days later is well inside the weekly window.
	res, err := eng.RecordCheckin(habit.ID, false, testStart.AddDate(0, 0, 3))
	assert.NoError(t, err)
	assert.True(t, res.Updated)

	conn, _ := store.Connection("duo-1")
	assert.Equal(t, 1, conn.TrustScore)
	assert.Equal(t, 1, conn.Streak)
	assert.Equal(t, dates.StartOfWeek(testStart.AddDate(0, 0, 3)), *conn.StreakCreditedAt)
}

func TestRecordCheckinWeeklyJustOverWindow(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyWeekly)

	_, err := eng.RecordCheckin(habit.ID, true, testStart)
	assert.NoError(t, err)

	res, err := eng.RecordCheckin(habit.ID, false, testStart.Add(7*24*time.Hour+time.Second))
	assert.NoError(t, err)
	assert.False(t, res.Updated)
}

func TestRecordCheckinMissingHabit(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)

	_, err := eng.RecordCheckin("nope", true, testStart)

	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestRecordCheckinMissingDuo(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)

	// Habit exists but its owning connection does not.
	habit := &models.DuoHabit{
		ID:        "orphan",
		DuoID:     "gone",
		Name:      "Morning walk",
		Frequency: models.FrequencyDaily,
		CreatedAt: testStart,
	}
	if err := store.InsertHabit(habit); err != nil {
		t.Fatalf("insert habit: %v", err)
	}

	_, err := eng.RecordCheckin(habit.ID, true, testStart)
	assert.NoError(t, err)

	// Second member completes the pair, mutual handling hits the missing duo.
	_, err = eng.RecordCheckin(habit.ID, false, testStart.Add(time.Hour))
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestRecordCheckinEvolvesTreeOnBoundary(t *testing.T) {
	store := db.NewMemoryStore()
	eng := New(store)
	_, habit := seedTestDuo(t, store, models.FrequencyDaily)

	// One credit away from level 10 (5 * 10 * 10 = 500).
	_, err := store.UpdateConnection("duo-1", func(c *models.DuoConnection) error {
		c.TrustScore = 499
		return nil
	})
	if err != nil {
		t.Fatalf("prime trust score: %v", err)
	}

	_, err = eng.RecordCheckin(habit.ID, true, testStart)
	assert.NoError(t, err)

	res, err := eng.RecordCheckin(habit.ID, false, testStart.Add(time.Hour))
	assert.NoError(t, err)
	assert.True(t, res.Updated)

	conn, _ := store.Connection("duo-1")
	assert.Equal(t, 500, conn.TrustScore)
	assert.Equal(t, models.StageSmallTree, conn.TreeStage)

	tree, _ := store.TreeByDuo("duo-1")
	assert.Equal(t, models.StageSmallTree, tree.Stage)
	assert.Len(t, tree.GrowthLog, 1)
	assert.Equal(t, dates.DayKey(testStart), tree.GrowthLog[0].Day)
}
