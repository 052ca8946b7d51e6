package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go-tweet-pipeline/internal/model"
	"go-tweet-pipeline/internal/sentiment"
	"go-tweet-pipeline/internal/store"
	"go-tweet-pipeline/pkg/logger"
	"go-tweet-pipeline/pkg/utils"

	"go.uber.org/zap"
)

// Options carries the collaborators of a run.
type Options struct {
	Logger *zap.Logger
	Scorer sentiment.Scorer // nil scores every text as neutral
	Store  *store.DB        // run store, may be nil
}

// Result is what a run produced.
type Result struct {
	RunID   string
	Raw     *model.Table
	Clean   *model.Table
	Exports []ExportResult
	Metrics model.RunMetrics
}

// ------------------- Pipeline Runner -------------------

// Run reads the source, extracts and cleans the table, validates it and
// exports it, in that order, stopping at the first error.
func Run(ctx context.Context, runID string, spec model.PipelineSpec, opts Options) (res *Result, err error) {
	log := logger.OrNop(opts.Logger).With(zap.String("run_id", runID))

	var recorder ProgressRecorder
	if opts.Store != nil {
		recorder = opts.Store
	}
	tracker := NewRunTracker(runID, recorder, log)
	tracker.SetStatus("running")
	log.Info("starting pipeline", zap.String("source", spec.Source.Path))

	res = &Result{RunID: runID}
	defer func() {
		if err != nil {
			tracker.Fail()
		} else {
			tracker.Complete()
		}
		res.Metrics = tracker.GetMetrics()
		if spec.Metrics.Textfile != "" {
			if werr := tracker.WriteMetrics(spec.Metrics.Textfile); werr != nil {
				log.Warn("metrics not written", zap.Error(werr))
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, utils.ParseDuration(spec.Timeout))
	defer cancel()

	// --- INGESTION + EXTRACTION ---
	raw, err := loadTable(ctx, spec, opts, tracker, log)
	if err != nil {
		return res, err
	}
	res.Raw = raw
	final := raw

	// --- CLEANING ---
	if spec.Cleaning.Enabled {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		cleaner, err := NewTweetCleaner(spec.Cleaning, log)
		if err != nil {
			return res, err
		}
		tracker.SetStatus("cleaning")
		final, err = cleaner.ApplySteps(raw, spec.Cleaning.Steps, tracker)
		if err != nil {
			return res, err
		}
		res.Clean = final
	}

	// --- VALIDATION ---
	if spec.Validate {
		rules := model.ValidationRules{}
		if spec.Cleaning.Enabled {
			rules = DefaultValidationRules(spec.Cleaning)
		}
		err = runStage(tracker, StageValidation, final.Len(), func() (int, error) {
			return final.Len(), ValidateTable(final, rules)
		})
		if err != nil {
			return res, err
		}
	}

	// --- EXPORT ---
	if err := ctx.Err(); err != nil {
		return res, err
	}
	tracker.SetStatus("exporting")
	writer, closeWriter, err := openTableWriter(ctx, spec.Export, opts.Store)
	if err != nil {
		return res, err
	}
	defer closeWriter()

	em := NewExportManager(runID, spec.Export, utils.NewOutputManager(spec.OutputDir), writer, log)
	err = runStage(tracker, StageExport, final.Len(), func() (int, error) {
		results, err := em.Export(ctx, final)
		res.Exports = results
		return final.Len(), err
	})
	if err != nil {
		return res, err
	}

	log.Info("pipeline completed", zap.Int("rows", final.Len()))
	return res, nil
}

// loadTable produces the raw table, either by extracting posts from a JSON
// lines file or by reading a saved CSV table.
func loadTable(ctx context.Context, spec model.PipelineSpec, opts Options, tracker *RunTracker, log *zap.Logger) (*model.Table, error) {
	tracker.SetStatus("ingesting")

	switch strings.ToLower(spec.Source.Type) {
	case "", "json", "jsonl":
		var records []model.Record
		err := runStage(tracker, StageIngestion, 0, func() (int, error) {
			n, recs, err := ReadJSON(ctx, spec.Source.Path)
			records = recs
			return n, err
		})
		if err != nil {
			return nil, err
		}

		var table *model.Table
		tracker.SetStatus("extracting")
		err = runStage(tracker, StageExtraction, len(records), func() (int, error) {
			table = NewTweetExtractor(records, opts.Scorer, log).GetTweetTable()
			if spec.Extract.Save {
				path := spec.Extract.SavePath
				if path == "" {
					path = DefaultSavePath
				}
				if _, err := SaveTable(path, table); err != nil {
					return table.Len(), fmt.Errorf("failed to save extracted table: %w", err)
				}
				log.Info("extracted table saved", zap.String("path", path))
			}
			return table.Len(), nil
		})
		return table, err

	case "csv":
		var table *model.Table
		err := runStage(tracker, StageIngestion, 0, func() (int, error) {
			t, err := ReadTableCSV(ctx, spec.Source.Path)
			if err != nil {
				return 0, err
			}
			table = t
			return t.Len(), nil
		})
		return table, err

	default:
		return nil, fmt.Errorf("unknown source type: %s", spec.Source.Type)
	}
}

// runStage wraps fn with tracker bookkeeping.
func runStage(tracker *RunTracker, stage string, rowsIn int, fn func() (int, error)) error {
	tracker.StartStage(stage, rowsIn)
	rowsOut, err := fn()
	if err != nil {
		err = fmt.Errorf("%s: %w", stage, err)
		tracker.FailStage(stage, err)
		return err
	}
	tracker.EndStage(stage, rowsOut)
	return nil
}

// openTableWriter resolves the database export target.
func openTableWriter(ctx context.Context, spec model.Export, runStore *store.DB) (TableWriter, func(), error) {
	noop := func() {}

	switch strings.ToLower(spec.DB) {
	case "":
		return nil, noop, nil
	case "sqlite", "sqlite3":
		if spec.DSN == "" {
			if runStore == nil {
				return nil, noop, fmt.Errorf("sqlite export needs a dsn or a run store")
			}
			return runStore, noop, nil
		}
		db, err := store.InitDB(spec.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open sqlite export database: %w", err)
		}
		return db, func() { db.Close() }, nil
	case "postgres", "postgresql":
		pg, err := store.NewPostgresStore(ctx, spec.DSN)
		if err != nil {
			return nil, noop, err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, noop, err
		}
		return pg, pg.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown export database: %s", spec.DB)
	}
}
