package users

import (
	"context"
	"slices"
	"strings"
	"sync"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users: make(map[string]User),
	}
}

func (r *MemoryRepo) Get(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r *MemoryRepo) Add(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Email]; ok {
		return ErrEmailTaken
	}
	r.users[user.Email] = user
	return nil
}

// ForEach calls fn for every user, ordered by email.
func (r *MemoryRepo) ForEach(_ context.Context, fn func(User) error) (int, error) {
	r.mu.RLock()
	all := make([]User, 0, len(r.users))
	for _, user := range r.users {
		all = append(all, user)
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b User) int {
		return strings.Compare(a.Email, b.Email)
	})
	for _, user := range all {
		if err := fn(user); err != nil {
			return 0, err
		}
	}
	return 0, nil
}
