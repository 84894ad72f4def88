package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/Jm9710/appProducotres/internal/config"
	"github.com/Jm9710/appProducotres/internal/database"
	"github.com/Jm9710/appProducotres/internal/domain/ingest"
	"github.com/Jm9710/appProducotres/internal/pkg/logger"
	"github.com/Jm9710/appProducotres/internal/repository"
	"github.com/Jm9710/appProducotres/internal/storage"
)

// reconcile prints one JSON report per producer describing objects without
// rows and rows without objects. It never deletes anything and exits with 1
// when any report has issues.
func main() {
	os.Exit(run())
}

func run() int {
	code := flag.String("productor", "", "producer code; empty checks every producer")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	// reports go to stdout, logs to stderr
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if cfg.StorageDriver != config.StorageS3 {
		log.Fatal().Str("storage", cfg.StorageDriver).Msg("reconcile needs STORAGE_DRIVER=s3")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, log, database.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer func() { _ = database.Close(db) }()

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("s3 init failed")
	}

	svc := ingest.NewService(repository.NewLedger(db), store, nil, log, ingest.Options{})

	var reports []*ingest.ReconcileReport
	if *code != "" {
		report, err := svc.Reconcile(ctx, *code)
		if err != nil {
			log.Fatal().Err(err).Str("cod_productor", *code).Msg("reconcile failed")
		}
		reports = append(reports, report)
	} else if reports, err = svc.ReconcileAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("reconcile failed")
	}

	dirty, err := writeReports(os.Stdout, reports)
	if err != nil {
		log.Fatal().Err(err).Msg("write report failed")
	}

	log.Info().Int("producers", len(reports)).Int("with_issues", dirty).Msg("reconcile completed")
	if dirty > 0 {
		return 1
	}
	return 0
}

// writeReports encodes each report as indented JSON and returns how many of
// them have issues.
func writeReports(w io.Writer, reports []*ingest.ReconcileReport) (int, error) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	dirty := 0
	for _, r := range reports {
		if !r.Clean() {
			dirty++
		}
		if err := enc.Encode(r); err != nil {
			return dirty, err
		}
	}
	return dirty, nil
}
