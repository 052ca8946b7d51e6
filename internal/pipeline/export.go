package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go-tweet-pipeline/internal/model"
	"go-tweet-pipeline/pkg/logger"
	"go-tweet-pipeline/pkg/utils"

	"go.uber.org/zap"
)

// TimestampLayout is how timestamps are written to delimited text.
const TimestampLayout = "2006-01-02 15:04:05-07:00"

// DefaultSavePath is where the raw extracted table is saved.
const DefaultSavePath = "processed_tweet_data.csv"

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "file" or "database"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	Bytes       int64     `json:"bytes,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

// TableWriter persists a table into a database.
type TableWriter interface {
	SaveTable(ctx context.Context, table string, runID string, t *model.Table) (int, error)
}

// ExportManager handles data export operations
type ExportManager struct {
	RunID   string
	Spec    model.Export
	Outputs *utils.OutputManager
	DB      TableWriter
	logger  *zap.Logger
}

// NewExportManager creates an export manager. db may be nil when the export
// names no database.
func NewExportManager(runID string, spec model.Export, outputs *utils.OutputManager, db TableWriter, log *zap.Logger) *ExportManager {
	if outputs == nil {
		outputs = utils.NewOutputManager("")
	}
	return &ExportManager{
		RunID:   runID,
		Spec:    spec,
		Outputs: outputs,
		DB:      db,
		logger:  logger.OrNop(log).Named("export"),
	}
}

// Export writes t to every configured target. Without a file or database
// target the table goes to a CSV file under the run's output directory.
func (em *ExportManager) Export(ctx context.Context, t *model.Table) ([]ExportResult, error) {
	var results []ExportResult

	path := em.Spec.File
	if path == "" && em.Spec.DB == "" {
		defaultPath, err := em.Outputs.GetOutputFilePath(em.RunID, "clean_tweets.csv")
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	if path != "" {
		result := em.exportToFile(path, t)
		results = append(results, result)
		if !result.Success {
			return results, fmt.Errorf("export to %s failed: %s", path, result.Error)
		}
	}

	if em.Spec.DB != "" {
		result := em.exportToDatabase(ctx, t)
		results = append(results, result)
		if !result.Success {
			return results, fmt.Errorf("export to %s failed: %s", em.Spec.DB, result.Error)
		}
	}

	return results, nil
}

// exportToFile writes CSV or JSON depending on the extension
func (em *ExportManager) exportToFile(path string, t *model.Table) ExportResult {
	recordCount, err := SaveTable(path, t)

	result := ExportResult{
		Type:        "file",
		Path:        path,
		RecordCount: recordCount,
		Success:     err == nil,
		ExportedAt:  time.Now(),
	}

	if err != nil {
		result.Error = err.Error()
		em.logger.Error("export to file failed", zap.String("path", path), zap.Error(err))
		return result
	}
	if size, err := em.Outputs.GetFileSize(path); err == nil {
		result.Bytes = size
	}
	em.logger.Info("export to file successful", zap.String("path", path), zap.Int("rows", recordCount))
	return result
}

// exportToDatabase stores the table through the configured writer
func (em *ExportManager) exportToDatabase(ctx context.Context, t *model.Table) ExportResult {
	tableName := em.Spec.Table
	if tableName == "" {
		tableName = "tweets"
	}

	result := ExportResult{
		Type:       "database",
		Path:       tableName,
		ExportedAt: time.Now(),
	}

	if em.DB == nil {
		result.Error = fmt.Sprintf("no writer for database %q", em.Spec.DB)
		return result
	}

	count, err := em.DB.SaveTable(ctx, tableName, em.RunID, t)
	result.RecordCount = count
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
		em.logger.Error("export to database failed", zap.String("db", em.Spec.DB), zap.Error(err))
		return result
	}
	em.logger.Info("export to database successful",
		zap.String("db", em.Spec.DB),
		zap.String("table", tableName),
		zap.Int("rows", count))
	return result
}

// SaveTable writes t to path as CSV, or as JSON when path ends in .json.
func SaveTable(path string, t *model.Table) (int, error) {
	om := utils.NewOutputManager("")
	if err := om.EnsureParentDir(path); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	var count int
	if om.GetFileType(path) == "json" {
		count, err = WriteJSON(file, t)
	} else {
		count, err = WriteCSV(file, t)
	}
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return count, err
}

// WriteCSV writes a header line with the column names and one line per row.
func WriteCSV(w io.Writer, t *model.Table) (int, error) {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.ColumnNames()); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	recordCount := 0
	line := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, v := range r {
			cell, err := FormatValue(v)
			if err != nil {
				return recordCount, fmt.Errorf("row %d: column %s: %w", recordCount, t.Columns[i].Name, err)
			}
			line[i] = cell
		}
		if err := writer.Write(line); err != nil {
			return recordCount, fmt.Errorf("failed to write row: %w", err)
		}
		recordCount++
	}

	writer.Flush()
	return recordCount, writer.Error()
}

// FormatValue renders a cell for delimited text: nil is empty, timestamps use
// TimestampLayout, lists and maps are JSON encoded.
func FormatValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case time.Time:
		return val.Format(TimestampLayout), nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case []interface{}, map[string]interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

// WriteJSON writes the table as an array of objects keyed by column name.
func WriteJSON(w io.Writer, t *model.Table) (int, error) {
	names := t.ColumnNames()
	objects := make([]map[string]interface{}, 0, t.Len())
	for _, r := range t.Rows {
		obj := make(map[string]interface{}, len(names))
		for i, name := range names {
			if ts, ok := r[i].(time.Time); ok {
				obj[name] = ts.Format(TimestampLayout)
				continue
			}
			obj[name] = r[i]
		}
		objects = append(objects, obj)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(objects); err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return len(objects), nil
}
