package users

import "context"

//go:generate mockgen -source=$GOFILE -destination=repo_mocks_test.go -package=users_test

type Repo interface {
	// Get returns ErrUserNotFound when there is no user with that email.
	Get(ctx context.Context, email string) (*User, error)
	// Add returns ErrEmailTaken when the email is already registered.
	Add(ctx context.Context, user User) error
}
