package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PsqlRepo struct {
	db *pgxpool.Pool
}

func NewPsqlRepo(db *pgxpool.Pool) *PsqlRepo {
	return &PsqlRepo{
		db: db,
	}
}

func (r *PsqlRepo) Get(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.psql.get")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	user := &User{}
	err = r.db.QueryRow(ctx, `
		SELECT email, password_hash, created_at
		FROM app_user
		WHERE email = $1
	`, email).Scan(&user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(err)
	}
	return user, nil
}

func (r *PsqlRepo) Add(ctx context.Context, user User) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.psql.add")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	_, err = r.db.Exec(ctx, `
		INSERT INTO app_user (email, password_hash, created_at)
		VALUES ($1, $2, $3)
	`, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrEmailTaken
		}
		return storeError(err)
	}
	return nil
}

func storeError(err error) error {
	if pkg.IsConnectionError(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
