package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/duogrove/server/models"
)

// creditRetries bounds how often a serialized transaction is replayed
// before the contention surfaces as ErrConflict.
const creditRetries = 3

// PostgresStore is the deployed Store. Every read-modify-write runs in a
// transaction with row locks so concurrent check-ins from both members of a
// duo cannot double-credit a streak or drop a trust increment.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const connectionColumns = "id, member_a_id, member_b_id, trust_score, streak, streak_credited_at, tree_stage, created_at"

func (s *PostgresStore) Connection(id string) (*models.DuoConnection, error) {
	row := LogAndQueryRow(s.db, "SELECT "+connectionColumns+" FROM duo_connections WHERE id = $1", id)
	return scanConnection(row)
}

const habitColumns = "id, duo_id, name, frequency, last_checkin_a, last_checkin_b, created_at"

func (s *PostgresStore) Habit(id string) (*models.DuoHabit, error) {
	row := LogAndQueryRow(s.db, "SELECT "+habitColumns+" FROM duo_habits WHERE id = $1", id)
	habit, err := scanHabit(row)
	if err != nil {
		return nil, err
	}

	rows, err := LogAndQuery(s.db, "SELECT day, triggered_by_a, member_a, member_b FROM checkin_history WHERE habit_id = $1", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habit.History = make(map[string]models.CheckinDay)
	for rows.Next() {
		var day string
		var rec models.CheckinDay
		if err := rows.Scan(&day, &rec.TriggeredByA, &rec.MemberA, &rec.MemberB); err != nil {
			return nil, err
		}
		habit.History[day] = rec
	}

	return habit, rows.Err()
}

// HabitsByDuo lists habit records without their check-in history.
func (s *PostgresStore) HabitsByDuo(duoID string) ([]*models.DuoHabit, error) {
	rows, err := LogAndQuery(s.db, "SELECT "+habitColumns+" FROM duo_habits WHERE duo_id = $1 ORDER BY created_at", duoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []*models.DuoHabit
	for rows.Next() {
		var habit models.DuoHabit
		var checkinA, checkinB sql.NullTime
		if err := rows.Scan(&habit.ID, &habit.DuoID, &habit.Name, &habit.Frequency, &checkinA, &checkinB, &habit.CreatedAt); err != nil {
			return nil, err
		}
		habit.LastCheckinA = timePtr(checkinA)
		habit.LastCheckinB = timePtr(checkinB)
		habits = append(habits, &habit)
	}

	return habits, rows.Err()
}

func (s *PostgresStore) TreeByDuo(duoID string) (*models.Tree, error) {
	row := LogAndQueryRow(s.db, "SELECT id, duo_id, stage, leaves, fruits, decay, created_at FROM trees WHERE duo_id = $1", duoID)

	var tree models.Tree
	if err := row.Scan(&tree.ID, &tree.DuoID, &tree.Stage, &tree.Leaves, &tree.Fruits, &tree.Decay, &tree.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := LogAndQuery(s.db, "SELECT day, stage, note FROM growth_log WHERE tree_id = $1 ORDER BY day", tree.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.GrowthEntry
		if err := rows.Scan(&entry.Day, &entry.Stage, &entry.Note); err != nil {
			return nil, err
		}
		tree.GrowthLog = append(tree.GrowthLog, entry)
	}

	return &tree, rows.Err()
}

func (s *PostgresStore) ConnectionIDs() ([]string, error) {
	rows, err := LogAndQuery(s.db, "SELECT id FROM duo_connections")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *PostgresStore) InsertConnection(conn *models.DuoConnection) error {
	_, err := LogAndExec(s.db, "INSERT INTO duo_connections (id, member_a_id, member_b_id, trust_score, streak, streak_credited_at, tree_stage, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		conn.ID, conn.MemberAID, conn.MemberBID, conn.TrustScore, conn.Streak, nullTime(conn.StreakCreditedAt), conn.TreeStage, conn.CreatedAt)
	return err
}

func (s *PostgresStore) InsertHabit(habit *models.DuoHabit) error {
	_, err := LogAndExec(s.db, "INSERT INTO duo_habits (id, duo_id, name, frequency, last_checkin_a, last_checkin_b, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		habit.ID, habit.DuoID, habit.Name, habit.Frequency, nullTime(habit.LastCheckinA), nullTime(habit.LastCheckinB), habit.CreatedAt)
	return err
}

func (s *PostgresStore) InsertTree(tree *models.Tree) error {
	_, err := LogAndExec(s.db, "INSERT INTO trees (id, duo_id, stage, leaves, fruits, decay, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		tree.ID, tree.DuoID, tree.Stage, tree.Leaves, tree.Fruits, tree.Decay, tree.CreatedAt)
	return err
}

// UpdateHabit locks the habit row, applies the closure, and writes the
// check-in slots back. History entries go through RecordCheckinDay instead.
func (s *PostgresStore) UpdateHabit(id string, apply func(*models.DuoHabit) error) (*models.DuoHabit, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := LogAndQueryRowTx(tx, "SELECT "+habitColumns+" FROM duo_habits WHERE id = $1 FOR UPDATE", id)
	habit, err := scanHabit(row)
	if err != nil {
		return nil, err
	}

	// The reconciler consults the history to avoid a second credit in the
	// same period, so it is part of the locked read.
	rows, err := LogAndQueryTx(tx, "SELECT day, triggered_by_a, member_a, member_b FROM checkin_history WHERE habit_id = $1", id)
	if err != nil {
		return nil, err
	}
	habit.History = make(map[string]models.CheckinDay)
	for rows.Next() {
		var day string
		var rec models.CheckinDay
		if err := rows.Scan(&day, &rec.TriggeredByA, &rec.MemberA, &rec.MemberB); err != nil {
			rows.Close()
			return nil, err
		}
		habit.History[day] = rec
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	if err := apply(habit); err != nil {
		return nil, err
	}

	if _, err := LogAndExecTx(tx, "UPDATE duo_habits SET last_checkin_a = $1, last_checkin_b = $2 WHERE id = $3",
		nullTime(habit.LastCheckinA), nullTime(habit.LastCheckinB), id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return habit, nil
}

func (s *PostgresStore) UpdateConnection(id string, apply func(*models.DuoConnection) error) (*models.DuoConnection, error) {
	var conn *models.DuoConnection

	err := s.withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		row := LogAndQueryRowTx(tx, "SELECT "+connectionColumns+" FROM duo_connections WHERE id = $1 FOR UPDATE", id)
		c, err := scanConnection(row)
		if err != nil {
			return err
		}

		if err := apply(c); err != nil {
			return err
		}

		if _, err := LogAndExecTx(tx, "UPDATE duo_connections SET trust_score = $1, streak = $2, streak_credited_at = $3, tree_stage = $4 WHERE id = $5",
			c.TrustScore, c.Streak, nullTime(c.StreakCreditedAt), c.TreeStage, id); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		conn = c
		return nil
	})

	return conn, err
}

func (s *PostgresStore) RecordCheckinDay(habitID, day string, rec models.CheckinDay) error {
	_, err := LogAndExec(s.db, "INSERT INTO checkin_history (habit_id, day, triggered_by_a, member_a, member_b) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (habit_id, day) DO UPDATE SET triggered_by_a = EXCLUDED.triggered_by_a, member_a = EXCLUDED.member_a, member_b = EXCLUDED.member_b",
		habitID, day, rec.TriggeredByA, rec.MemberA, rec.MemberB)
	return err
}

func (s *PostgresStore) SetTreeStage(duoID string, stage models.TreeStage, entry models.GrowthEntry) error {
	return s.withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := LogAndExecTx(tx, "UPDATE duo_connections SET tree_stage = $1 WHERE id = $2", stage, duoID)
		if err != nil {
			return err
		}
		if count, err := res.RowsAffected(); err == nil && count == 0 {
			return ErrNotFound
		}

		row := LogAndQueryRowTx(tx, "UPDATE trees SET stage = $1 WHERE duo_id = $2 RETURNING id", stage, duoID)
		var treeID string
		if err := row.Scan(&treeID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if _, err := LogAndExecTx(tx, "INSERT INTO growth_log (tree_id, day, stage, note) VALUES ($1, $2, $3, $4) ON CONFLICT (tree_id, day) DO UPDATE SET stage = EXCLUDED.stage, note = EXCLUDED.note",
			treeID, entry.Day, entry.Stage, entry.Note); err != nil {
			return err
		}

		return tx.Commit()
	})
}

func (s *PostgresStore) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < creditRetries; attempt++ {
		err = op()
		if !retryable(err) {
			return err
		}
	}

	return fmt.Errorf("%w: %v", ErrConflict, err)
}

// retryable reports serialization failures and deadlocks, which Postgres
// asks the client to replay.
func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func scanConnection(row *sql.Row) (*models.DuoConnection, error) {
	var conn models.DuoConnection
	var credited sql.NullTime

	if err := row.Scan(&conn.ID, &conn.MemberAID, &conn.MemberBID, &conn.TrustScore, &conn.Streak, &credited, &conn.TreeStage, &conn.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	conn.StreakCreditedAt = timePtr(credited)

	return &conn, nil
}

func scanHabit(row *sql.Row) (*models.DuoHabit, error) {
	var habit models.DuoHabit
	var checkinA, checkinB sql.NullTime

	if err := row.Scan(&habit.ID, &habit.DuoID, &habit.Name, &habit.Frequency, &checkinA, &checkinB, &habit.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	habit.LastCheckinA = timePtr(checkinA)
	habit.LastCheckinB = timePtr(checkinB)

	return &habit, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	at := t.Time
	return &at
}
