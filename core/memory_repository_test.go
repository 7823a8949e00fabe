package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryUserRepo is an in-memory UserRepository for tests. Setting failing
// simulates an unreachable store.
type memoryUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*UserRecord
	failing bool
}

var errStoreUnavailable = errors.New("store unavailable")

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byID: map[string]*UserRecord{}}
}

func (r *memoryUserRepo) fail() error {
	if r.failing {
		return errStoreUnavailable
	}
	return nil
}

func (r *memoryUserRepo) FindByID(_ context.Context, id string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepo) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memoryUserRepo) Create(_ context.Context, name, email, passwordHash string, admin, verified bool) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	now := time.Now()
	u := &UserRecord{
		ID:            uuid.NewString(),
		Name:          name,
		Email:         NormalizeEmail(email),
		PasswordHash:  passwordHash,
		EmailVerified: verified,
		Admin:         admin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepo) IsAdmin(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return false, err
	}
	u, ok := r.byID[id]
	if !ok {
		return false, ErrUserNotFound
	}
	return u.Admin, nil
}

func (r *memoryUserRepo) MarkEmailVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	u, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.EmailVerified = true
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	u, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memoryUserRepo) HasAdmin(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return false, err
	}
	for _, u := range r.byID {
		if u.Admin {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryUserRepo) List(_ context.Context, page, perPage int) ([]UserListItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, 0, err
	}
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	all := make([]*UserRecord, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	total := len(all)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	items := make([]UserListItem, 0, end-start)
	for _, u := range all[start:end] {
		items = append(items, UserListItem{
			ID:            u.ID,
			Name:          u.Name,
			Email:         u.Email,
			EmailVerified: u.EmailVerified,
			Admin:         u.Admin,
			CreatedAt:     u.CreatedAt,
		})
	}
	return items, total, nil
}

func (r *memoryUserRepo) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return 0, err
	}
	n := int64(len(r.byID))
	r.byID = map[string]*UserRecord{}
	return n, nil
}
