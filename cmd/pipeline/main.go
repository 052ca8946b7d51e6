package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-tweet-pipeline/internal/config"
	"go-tweet-pipeline/internal/pipeline"
	"go-tweet-pipeline/internal/sentiment"
	"go-tweet-pipeline/internal/store"
	"go-tweet-pipeline/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the run configuration")
	source := flag.String("source", "", "input file, overrides source.path")
	flag.Parse()

	overrides := map[string]interface{}{}
	if *source != "" {
		overrides["source.path"] = *source
	}

	spec, err := config.LoadWithOverrides(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log, err := logger.New(spec.Logging.Level, spec.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	scorer, err := sentiment.New(spec.Sentiment)
	if err != nil {
		log.Fatal("invalid sentiment analyzer", zap.Error(err))
	}

	runID := uuid.New().String()

	var db *store.DB
	if spec.StorePath != "" {
		db, err = store.InitDB(spec.StorePath)
		if err != nil {
			log.Fatal("failed to open run store", zap.String("path", spec.StorePath), zap.Error(err))
		}
		defer db.Close()

		if err := db.SaveRun(runID, *spec); err != nil {
			log.Fatal("failed to save run", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, runID, *spec, pipeline.Options{
		Logger: log,
		Scorer: scorer,
		Store:  db,
	})
	if err != nil {
		log.Error("pipeline failed", zap.String("run_id", runID), zap.Error(err))
		log.Sync()
		os.Exit(1)
	}

	for _, e := range res.Exports {
		log.Info("exported",
			zap.String("type", e.Type),
			zap.String("path", e.Path),
			zap.Int("records", e.RecordCount))
	}
}
