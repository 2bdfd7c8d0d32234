package database

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paycheck/paycheck-backend/model"
	"github.com/paycheck/paycheck-backend/util"
)

// MemoryStore keeps organizations and users in process memory with the same
// revision semantics as ArangoStore. Documents are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	orgs  map[string]*model.Organization
	users map[string]*model.User
	rev   uint64
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:  make(map[string]*model.Organization),
		users: make(map[string]*model.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FindOrganizationByID fetches an organization by key.
func (m *MemoryStore) FindOrganizationByID(_ context.Context, id string) (*model.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	org, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return org.Clone(), nil
}

// FindOrganizationByName fetches an organization by name, ignoring case.
func (m *MemoryStore) FindOrganizationByName(_ context.Context, name string) (*model.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := util.NormalizeOrgName(name)
	for _, org := range m.orgs {
		if org.NameKey == want {
			return org.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// FindUserByID fetches a user by key.
func (m *MemoryStore) FindUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user.Clone(), nil
}

// SaveOrganization inserts or conditionally replaces an organization.
func (m *MemoryStore) SaveOrganization(_ context.Context, org *model.Organization) (*model.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := org.Clone()
	if saved.Rev == "" {
		if saved.Key == "" {
			saved.Key = uuid.NewString()
		}
		if _, exists := m.orgs[saved.Key]; exists {
			return nil, fmt.Errorf("insert organization %s: %w", saved.Key, ErrConflict)
		}
	} else {
		current, ok := m.orgs[saved.Key]
		if !ok {
			return nil, ErrNotFound
		}
		if current.Rev != saved.Rev {
			return nil, fmt.Errorf("replace organization %s: %w", saved.Key, ErrConflict)
		}
	}

	saved.NameKey = util.NormalizeOrgName(saved.Name)
	for key, other := range m.orgs {
		if key != saved.Key && other.NameKey == saved.NameKey {
			return nil, fmt.Errorf("organization name %q: %w", saved.Name, ErrConflict)
		}
	}

	saved.UpdatedAt = m.now()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = saved.UpdatedAt
	}
	saved.Rev = m.nextRev()
	m.orgs[saved.Key] = saved
	return saved.Clone(), nil
}

// SaveUser inserts or conditionally replaces a user.
func (m *MemoryStore) SaveUser(_ context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := user.Clone()
	if saved.Rev == "" {
		if saved.Key == "" {
			saved.Key = uuid.NewString()
		}
		if _, exists := m.users[saved.Key]; exists {
			return nil, fmt.Errorf("insert user %s: %w", saved.Key, ErrConflict)
		}
	} else {
		current, ok := m.users[saved.Key]
		if !ok {
			return nil, ErrNotFound
		}
		if current.Rev != saved.Rev {
			return nil, fmt.Errorf("replace user %s: %w", saved.Key, ErrConflict)
		}
	}

	for key, other := range m.users {
		if key != saved.Key && other.Username == saved.Username {
			return nil, fmt.Errorf("username %q: %w", saved.Username, ErrConflict)
		}
	}

	saved.Rev = m.nextRev()
	m.users[saved.Key] = saved
	return saved.Clone(), nil
}

func (m *MemoryStore) nextRev() string {
	m.rev++
	return "_m" + strconv.FormatUint(m.rev, 36)
}
