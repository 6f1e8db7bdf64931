package tasks

import "sync"

// Store is the ordered, in-memory task list of one session.
// Ids are assigned on insertion, start at 1 and are never reused.
type Store struct {
	mu     sync.RWMutex
	tasks  []Task
	nextID TaskID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tasks:  make([]Task, 0),
		nextID: 1,
	}
}

// AddSingle validates f and appends the resulting task.
// On a validation failure the store is left untouched.
func (s *Store) AddSingle(f Fields) (Task, error) {
	t, err := f.parse()
	if err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.assignID()
	s.tasks = append(s.tasks, t)
	return t.Clone(), nil
}

// AddBulk parses a JSON array of task records and appends all of them, each
// with a fresh id. Either every record is added or none is.
func (s *Store) AddBulk(payload []byte) ([]Task, error) {
	parsed, err := ParseBulk(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]Task, len(parsed))
	for i, t := range parsed {
		t.ID = s.assignID()
		s.tasks = append(s.tasks, t)
		added[i] = t.Clone()
	}
	return added, nil
}

// ReplaceAll discards the current contents and holds tasks verbatim.
// The id counter moves past the largest replacement id so later inserts
// never collide with a returned task.
func (s *Store) ReplaceAll(tasks []Task) {
	replaced := cloneAll(tasks)
	for i := range replaced {
		if replaced[i].Dependencies == nil {
			replaced[i].Dependencies = make([]TaskID, 0)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = replaced
	for _, t := range replaced {
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
}

// Clear removes every task. Ids already handed out stay retired.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make([]Task, 0)
}

// IsEmpty reports whether the store holds no tasks.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Snapshot returns a deep copy of the tasks in insertion order.
func (s *Store) Snapshot() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.tasks)
}

// assignID must be called with s.mu held.
func (s *Store) assignID() TaskID {
	if s.nextID < 1 {
		s.nextID = 1
	}
	id := s.nextID
	s.nextID++
	return id
}
