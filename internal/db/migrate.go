package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Schema is applied on startup when migrate_on_start is set, and by the integration suite.
const Schema = `
CREATE TABLE IF NOT EXISTS app_user
(
    id            SERIAL PRIMARY KEY,
    email         VARCHAR     NOT NULL,
    password_hash VARCHAR     NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_app_user_email UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS workout_record
(
    id                SERIAL PRIMARY KEY,
    owner             VARCHAR     NOT NULL,
    date              DATE        NOT NULL,
    entries           JSONB       NOT NULL DEFAULT '{}',
    last_updated_time VARCHAR     NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_workout_record_owner_date UNIQUE (owner, date)
);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Debugln("db schema applied")
	return nil
}
