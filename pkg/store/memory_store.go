package store

import (
	"context"
	"sync"
	"time"

	"petsphere/pkg/domain"
)

// MemoryStore keeps users and pets in-process. It backs tests and local
// development; the Postgres store is the production implementation.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	email map[string]string // email -> user ID
	pets  map[string]domain.Pet
	order []string // pet insertion order

	txMu sync.Mutex
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		email: make(map[string]string),
		pets:  make(map[string]domain.Pet),
	}
}

// Transact takes a snapshot, runs fn, and restores the snapshot when fn
// fails, mirroring the rollback semantics of the SQL store.
func (m *MemoryStore) Transact(_ context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snapshot := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	users map[string]domain.User
	email map[string]string
	pets  map[string]domain.Pet
	order []string
}

func (m *MemoryStore) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := memorySnapshot{
		users: make(map[string]domain.User, len(m.users)),
		email: make(map[string]string, len(m.email)),
		pets:  make(map[string]domain.Pet, len(m.pets)),
		order: append([]string(nil), m.order...),
	}
	for k, v := range m.users {
		snap.users[k] = v
	}
	for k, v := range m.email {
		snap.email[k] = v
	}
	for k, v := range m.pets {
		snap.pets[k] = v
	}
	return snap
}

func (m *MemoryStore) restore(snap memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = snap.users
	m.email = snap.email
	m.pets = snap.pets
	m.order = snap.order
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SavePet stores or replaces a pet and tracks insertion order.
func (m *MemoryStore) SavePet(p domain.Pet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pets[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	m.pets[p.ID] = p
	return nil
}

// GetPet retrieves a pet by ID.
func (m *MemoryStore) GetPet(id string) (domain.Pet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pets[id]
	return p, ok, nil
}

// ListPetsByOwner returns pets filtered by owner in insertion order.
func (m *MemoryStore) ListPetsByOwner(ownerID string) ([]domain.Pet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Pet, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.pets[id]; ok && p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	return res, nil
}

// DeletePet removes a pet.
func (m *MemoryStore) DeletePet(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pets, id)
	filtered := m.order[:0]
	for _, item := range m.order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.order = filtered
	return nil
}

// SetPetPhoto updates the stored photo reference.
func (m *MemoryStore) SetPetPhoto(id, photoURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pet, ok := m.pets[id]
	if !ok {
		return nil
	}
	pet.PhotoURL = photoURL
	pet.UpdatedAt = time.Now().UTC()
	m.pets[id] = pet
	return nil
}
