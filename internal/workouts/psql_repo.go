package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type PsqlRepo struct {
	db *pgxpool.Pool
}

func NewPsqlRepo(db *pgxpool.Pool) *PsqlRepo {
	return &PsqlRepo{
		db: db,
	}
}

func (r *PsqlRepo) FindOne(ctx context.Context, owner, date string) (_ *Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.psql.findone")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	record := &Record{Owner: owner}
	err = r.db.QueryRow(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), entries, last_updated_time
		FROM workout_record
		WHERE owner = $1 AND date = $2
	`, owner, day).Scan(&record.Date, &record.Entries, &record.LastUpdatedTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError(err)
	}

	return record, nil
}

func (r *PsqlRepo) FindRange(ctx context.Context, owner, from, to string) (_ []Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.psql.findrange")
	defer func() {
		tracing.EndSpan(span, err)
	}()
	span.SetAttributes(attribute.String("from", from), attribute.String("to", to))

	fromDay, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	toDay, err := ParseDate(to)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), entries, last_updated_time
		FROM workout_record
		WHERE owner = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`, owner, fromDay, toDay)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		record := Record{Owner: owner}
		if err := rows.Scan(&record.Date, &record.Entries, &record.LastUpdatedTime); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}

	return records, nil
}

// Upsert inserts the record, or locks the existing row and merges into it,
// all inside one transaction. An unchanged record is not written.
func (r *PsqlRepo) Upsert(
	ctx context.Context,
	owner, date string,
	entries Entries,
	lastUpdatedTime string,
) (_ SaveStatus, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.psql.upsert")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	day, err := ParseDate(date)
	if err != nil {
		return StatusUnknown, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return StatusUnknown, storeError(err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = storeError(tx.Commit(ctx))
		}
	}()

	var id int
	err = tx.QueryRow(ctx, `
		INSERT INTO workout_record (owner, date, entries, last_updated_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, date) DO NOTHING
		RETURNING id
	`, owner, day, entries, lastUpdatedTime).Scan(&id)
	if err == nil {
		return Created, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return StatusUnknown, storeError(err)
	}

	var stored Entries
	err = tx.QueryRow(ctx, `
		SELECT entries
		FROM workout_record
		WHERE owner = $1 AND date = $2
		FOR UPDATE
	`, owner, day).Scan(&stored)
	if err != nil {
		return StatusUnknown, storeError(err)
	}

	if stored.Equal(entries) {
		return Unchanged, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE workout_record
		SET entries = entries || $3::jsonb, last_updated_time = $4, updated_at = $5
		WHERE owner = $1 AND date = $2
	`, owner, day, entries, lastUpdatedTime, time.Now().UTC())
	if err != nil {
		return StatusUnknown, storeError(err)
	}

	return Updated, nil
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	if pkg.IsConnectionError(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
