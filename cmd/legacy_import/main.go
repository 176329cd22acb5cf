package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/legacyimport"
	"github.com/2beens/gymtracker/internal/logging"
	"github.com/2beens/gymtracker/internal/mongodb"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/workouts"

	log "github.com/sirupsen/logrus"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	mongoURI := flag.String("mongo-uri", "", "legacy mongo uri (defaults to the configured one)")
	mongoDBName := flag.String("mongo-db", "", "legacy mongo db name (defaults to the configured one)")
	dryRun := flag.Bool("dry-run", false, "only read and count the legacy data")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %s\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	})

	if *mongoURI == "" {
		*mongoURI = cfg.MongoURI
	}
	if *mongoDBName == "" {
		*mongoDBName = cfg.MongoDBName
	}
	if *mongoURI == "" {
		log.Fatalln("legacy mongo uri not set, use -mongo-uri or GYMTRACKER_MONGO_URI")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, mongoDB, err := mongodb.NewClient(ctx, mongodb.NewClientParams{
		URI:    *mongoURI,
		DBName: *mongoDBName,
	})
	if err != nil {
		log.Fatalf("mongo client: %s", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Errorf("mongo disconnect: %s", err)
		}
	}()

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: cfg.PostgresPassword,
	})
	if err != nil {
		log.Fatalf("db pool: %s", err)
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatalf("migrate: %s", err)
	}

	importer := legacyimport.NewImporter(
		users.NewMongoRepo(mongoDB),
		users.NewPsqlRepo(dbPool),
		workouts.NewMongoRepo(mongoDB),
		workouts.NewPsqlRepo(dbPool),
		*dryRun,
	)

	start := time.Now()
	stats, err := importer.Run(ctx)
	if err != nil {
		log.Errorf("import failed after %s: %s", time.Since(start), err)
		log.Errorf("partial stats: %s", stats)
		return
	}

	log.Infof("import done in %s (dry run: %t)", time.Since(start), *dryRun)
	log.Infof("%s", stats)
}
