package workouts

import "context"

//go:generate mockgen -source=$GOFILE -destination=repo_mocks_test.go -package=workouts_test

// Repo is the persistent store behind the Service.
// Upsert must run the lookup, compare and merge atomically for one (owner, date).
type Repo interface {
	FindOne(ctx context.Context, owner, date string) (*Record, error)
	FindRange(ctx context.Context, owner, from, to string) ([]Record, error)
	Upsert(ctx context.Context, owner, date string, entries Entries, lastUpdatedTime string) (SaveStatus, error)
}
