package jobs

import "sync"

// Storage keeps the saved postings and applied identifiers.
type Storage interface {
	AddSaved(p Posting) error
	RemoveSaved(id string) error
	GetAllSaved() ([]Posting, error)
	CheckSaved(id string) (bool, error)
	MarkApplied(id string) error
	CheckApplied(id string) (bool, error)
	GetAllApplied() ([]string, error)
}

// MemoryStorage is a Storage backed by process memory.
type MemoryStorage struct {
	mu      sync.Mutex
	saved   []Posting
	applied []string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) AddSaved(p Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.saved {
		if s.ID == p.ID {
			return nil
		}
	}
	m.saved = append(m.saved, p)
	return nil
}

func (m *MemoryStorage) RemoveSaved(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.saved {
		if s.ID == id {
			m.saved = append(m.saved[:i:i], m.saved[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryStorage) GetAllSaved() ([]Posting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Posting, len(m.saved))
	copy(out, m.saved)
	return out, nil
}

func (m *MemoryStorage) CheckSaved(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.saved {
		if s.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStorage) MarkApplied(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applied {
		if a == id {
			return nil
		}
	}
	m.applied = append(m.applied, id)
	return nil
}

func (m *MemoryStorage) CheckApplied(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applied {
		if a == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStorage) GetAllApplied() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.applied))
	copy(out, m.applied)
	return out, nil
}
