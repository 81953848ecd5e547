package db

import (
	"sync"

	"github.com/duogrove/server/models"
)

// MemoryStore keeps all records in process behind one mutex, which gives
// every read-modify-write serializable semantics. Used by tests and the
// seed command; the deployed store is PostgresStore.
type MemoryStore struct {
	mu          sync.Mutex
	connections map[string]*models.DuoConnection
	habits      map[string]*models.DuoHabit
	trees       map[string]*models.Tree // keyed by duo id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connections: make(map[string]*models.DuoConnection),
		habits:      make(map[string]*models.DuoHabit),
		trees:       make(map[string]*models.Tree),
	}
}

func (s *MemoryStore) Connection(id string) (*models.DuoConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyConnection(conn), nil
}

func (s *MemoryStore) Habit(id string) (*models.DuoHabit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	habit, ok := s.habits[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyHabit(habit), nil
}

func (s *MemoryStore) HabitsByDuo(duoID string) ([]*models.DuoHabit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var habits []*models.DuoHabit
	for _, h := range s.habits {
		if h.DuoID == duoID {
			habits = append(habits, copyHabit(h))
		}
	}

	return habits, nil
}

func (s *MemoryStore) TreeByDuo(duoID string) (*models.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, ok := s.trees[duoID]
	if !ok {
		return nil, ErrNotFound
	}

	return copyTree(tree), nil
}

func (s *MemoryStore) ConnectionIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.connections))
	for id := range s.connections {
		ids = append(ids, id)
	}

	return ids, nil
}

func (s *MemoryStore) InsertConnection(conn *models.DuoConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[conn.ID] = copyConnection(conn)
	return nil
}

func (s *MemoryStore) InsertHabit(habit *models.DuoHabit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.habits[habit.ID] = copyHabit(habit)
	return nil
}

func (s *MemoryStore) InsertTree(tree *models.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trees[tree.DuoID] = copyTree(tree)
	return nil
}

func (s *MemoryStore) UpdateHabit(id string, apply func(*models.DuoHabit) error) (*models.DuoHabit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	habit, ok := s.habits[id]
	if !ok {
		return nil, ErrNotFound
	}

	if err := apply(habit); err != nil {
		return nil, err
	}

	return copyHabit(habit), nil
}

func (s *MemoryStore) UpdateConnection(id string, apply func(*models.DuoConnection) error) (*models.DuoConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[id]
	if !ok {
		return nil, ErrNotFound
	}

	if err := apply(conn); err != nil {
		return nil, err
	}

	return copyConnection(conn), nil
}

func (s *MemoryStore) RecordCheckinDay(habitID, day string, rec models.CheckinDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	habit, ok := s.habits[habitID]
	if !ok {
		return ErrNotFound
	}

	if habit.History == nil {
		habit.History = make(map[string]models.CheckinDay)
	}
	habit.History[day] = rec

	return nil
}

func (s *MemoryStore) SetTreeStage(duoID string, stage models.TreeStage, entry models.GrowthEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[duoID]
	if !ok {
		return ErrNotFound
	}
	tree, ok := s.trees[duoID]
	if !ok {
		return ErrNotFound
	}

	conn.TreeStage = stage
	tree.Stage = stage

	// Same-day transitions overwrite that day's log entry.
	for i := range tree.GrowthLog {
		if tree.GrowthLog[i].Day == entry.Day {
			tree.GrowthLog[i] = entry
			return nil
		}
	}
	tree.GrowthLog = append(tree.GrowthLog, entry)

	return nil
}

func copyConnection(conn *models.DuoConnection) *models.DuoConnection {
	out := *conn
	if conn.StreakCreditedAt != nil {
		at := *conn.StreakCreditedAt
		out.StreakCreditedAt = &at
	}
	return &out
}

func copyHabit(habit *models.DuoHabit) *models.DuoHabit {
	out := *habit
	if habit.LastCheckinA != nil {
		at := *habit.LastCheckinA
		out.LastCheckinA = &at
	}
	if habit.LastCheckinB != nil {
		at := *habit.LastCheckinB
		out.LastCheckinB = &at
	}
	if habit.History != nil {
		out.History = make(map[string]models.CheckinDay, len(habit.History))
		for k, v := range habit.History {
			out.History[k] = v
		}
	}
	return &out
}

func copyTree(tree *models.Tree) *models.Tree {
	out := *tree
	if tree.GrowthLog != nil {
		out.GrowthLog = append([]models.GrowthEntry(nil), tree.GrowthLog...)
	}
	return &out
}
