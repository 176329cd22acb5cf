package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/mongodb"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// store holds the repos of the configured driver and its connection handles.
type store struct {
	driver       string
	workoutsRepo workouts.Repo
	usersRepo    users.Repo

	dbPool      *pgxpool.Pool
	mongoClient *mongo.Client

	// collector is the pool stats collector, nil for non-postgres drivers
	collector prometheus.Collector
}

func newStore(ctx context.Context, cfg *config.Config, tracingEnabled bool) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return newPostgresStore(ctx, cfg, tracingEnabled)
	case config.StoreDriverMongo:
		return newMongoStore(ctx, cfg)
	case config.StoreDriverMemory:
		log.Warnln("using in-memory store, data will be lost on restart")
		return &store{
			driver:       config.StoreDriverMemory,
			workoutsRepo: workouts.NewMemoryRepo(),
			usersRepo:    users.NewMemoryRepo(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}
}

func newPostgresStore(ctx context.Context, cfg *config.Config, tracingEnabled bool) (*store, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     cfg.PostgresPassword,
		TracingEnabled: tracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, dbPool); err != nil {
			dbPool.Close()
			return nil, err
		}
	}

	return &store{
		driver:       config.StoreDriverPostgres,
		workoutsRepo: workouts.NewPsqlRepo(dbPool),
		usersRepo:    users.NewPsqlRepo(dbPool),
		dbPool:       dbPool,
		collector: pgxpoolprometheus.NewCollector(
			dbPool,
			map[string]string{"db_name": cfg.PostgresDBName},
		),
	}, nil
}

func newMongoStore(ctx context.Context, cfg *config.Config) (*store, error) {
	client, database, err := mongodb.NewClient(ctx, mongodb.NewClientParams{
		URI:            cfg.MongoURI,
		DBName:         cfg.MongoDBName,
		ConnectTimeout: cfg.StoreTimeout,
	})
	if err != nil {
		return nil, err
	}

	// without the unique indexes concurrent first saves can create duplicate records
	if err := mongodb.Ping(ctx, client); err != nil {
		disconnectMongo(client)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if err := mongodb.EnsureIndexes(ctx, database); err != nil {
		disconnectMongo(client)
		return nil, err
	}

	return &store{
		driver:       config.StoreDriverMongo,
		workoutsRepo: workouts.NewMongoRepo(database),
		usersRepo:    users.NewMongoRepo(database),
		mongoClient:  client,
	}, nil
}

func (s *store) Ping(ctx context.Context) error {
	switch {
	case s.dbPool != nil:
		return s.dbPool.Ping(ctx)
	case s.mongoClient != nil:
		return mongodb.Ping(ctx, s.mongoClient)
	default:
		return nil
	}
}

func (s *store) Close() {
	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}
	if s.mongoClient != nil {
		disconnectMongo(s.mongoClient)
		log.Debugln("mongo client disconnected")
	}
}

func disconnectMongo(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Errorf("failed to disconnect mongo client: %s", err)
	}
}
