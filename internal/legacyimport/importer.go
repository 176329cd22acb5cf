// Package legacyimport copies the data of a legacy mongo deployment into
// another store, usually postgres. Running it again is safe: workout
// records are merged, users that already exist are left as they are.
package legacyimport

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/workouts"

	log "github.com/sirupsen/logrus"
)

type WorkoutsSource interface {
	ForEach(ctx context.Context, fn func(workouts.Record) error) (int, error)
}

type UsersSource interface {
	ForEach(ctx context.Context, fn func(users.User) error) (int, error)
}

type Stats struct {
	UsersImported   int
	UsersExisting   int
	UsersSkipped    int
	RecordsCreated  int
	RecordsUpdated  int
	RecordsSame     int
	RecordsSkipped  int
	RecordsRejected int
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"users: imported=%d existing=%d skipped=%d; workouts: created=%d updated=%d unchanged=%d skipped=%d rejected=%d",
		s.UsersImported, s.UsersExisting, s.UsersSkipped,
		s.RecordsCreated, s.RecordsUpdated, s.RecordsSame, s.RecordsSkipped, s.RecordsRejected,
	)
}

type Importer struct {
	usersSrc    UsersSource
	usersDst    users.Repo
	workoutsSrc WorkoutsSource
	workoutsDst workouts.Repo
	dryRun      bool
}

func NewImporter(
	usersSrc UsersSource,
	usersDst users.Repo,
	workoutsSrc WorkoutsSource,
	workoutsDst workouts.Repo,
	dryRun bool,
) *Importer {
	return &Importer{
		usersSrc:    usersSrc,
		usersDst:    usersDst,
		workoutsSrc: workoutsSrc,
		workoutsDst: workoutsDst,
		dryRun:      dryRun,
	}
}

func (i *Importer) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	skipped, err := i.usersSrc.ForEach(ctx, func(user users.User) error {
		if i.dryRun {
			stats.UsersImported++
			return nil
		}
		err := i.usersDst.Add(ctx, user)
		switch {
		case err == nil:
			stats.UsersImported++
		case errors.Is(err, users.ErrEmailTaken):
			stats.UsersExisting++
		default:
			return fmt.Errorf("import user %s: %w", user.Email, err)
		}
		return nil
	})
	stats.UsersSkipped += skipped
	if err != nil {
		return stats, err
	}
	log.Debugf("users imported: %d, existing: %d", stats.UsersImported, stats.UsersExisting)

	skipped, err = i.workoutsSrc.ForEach(ctx, func(record workouts.Record) error {
		if err := workouts.ValidateRecord(record.Owner, record.Entries, record.Date); err != nil {
			log.Warnf("rejecting workout record [%s / %s]: %s", record.Owner, record.Date, err)
			stats.RecordsRejected++
			return nil
		}
		if i.dryRun {
			stats.RecordsCreated++
			return nil
		}

		status, err := i.workoutsDst.Upsert(ctx, record.Owner, record.Date, record.Entries, record.LastUpdatedTime)
		if err != nil {
			return fmt.Errorf("import workout %s / %s: %w", record.Owner, record.Date, err)
		}
		switch status {
		case workouts.Created:
			stats.RecordsCreated++
		case workouts.Updated:
			stats.RecordsUpdated++
		default:
			stats.RecordsSame++
		}
		return nil
	})
	stats.RecordsSkipped += skipped
	if err != nil {
		return stats, err
	}

	return stats, nil
}
