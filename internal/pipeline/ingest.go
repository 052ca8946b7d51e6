package pipeline

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go-tweet-pipeline/internal/model"
	"go-tweet-pipeline/pkg/utils"
)

// maxLineSize bounds a single JSON line; posts with full user objects run
// well past bufio's 64KiB default.
const maxLineSize = 16 * 1024 * 1024

// openInput opens path, transparently decompressing a .gz file.
func openInput(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return file, nil
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open gzip: %w", err)
	}
	return &gzipFile{Reader: gz, file: file}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	g.Reader.Close()
	return g.file.Close()
}

// ReadJSON reads a file holding one JSON post per line and returns the
// record count and the records. Blank lines are skipped; the first
// malformed line aborts the read.
func ReadJSON(ctx context.Context, path string) (int, []model.Record, error) {
	in, err := openInput(path)
	if err != nil {
		return 0, nil, err
	}
	defer in.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []model.Record
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var rec model.Record
		if err := dec.Decode(&rec); err != nil {
			return 0, nil, fmt.Errorf("line %d: failed to decode JSON: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, fmt.Errorf("error reading %s at line %d: %w", path, lineNum, err)
	}

	return len(records), records, nil
}

// ReadTableCSV loads a previously exported table. Columns named like the
// extractor schema take its types; any other column is read as text.
// Empty cells become nil.
func ReadTableCSV(ctx context.Context, path string) (*model.Table, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	csvReader := csv.NewReader(in)
	csvReader.LazyQuotes = true
	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	known := make(map[string]model.ColumnType, len(TweetColumns))
	for _, c := range TweetColumns {
		known[c.Name] = c.Type
	}

	columns := make([]model.Column, len(headers))
	for i, h := range headers {
		// Clean header names: trim whitespace and remove ALL quotes
		name := strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
		typ, ok := known[name]
		if !ok {
			typ = model.TypeText
		}
		columns[i] = model.Column{Name: name, Type: typ}
	}
	csvReader.FieldsPerRecord = len(columns)

	table := model.NewTable(columns)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error: %w", err)
		}

		row := make(model.Row, len(columns))
		for i, cell := range record {
			row[i] = parseCell(cell, columns[i].Type)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// parseCell keeps text columns as written so that duplicated header lines
// stay recognizable.
func parseCell(cell string, typ model.ColumnType) interface{} {
	if cell == "" {
		return nil
	}
	switch typ {
	case model.TypeInteger, model.TypeFloat:
		return utils.ParseValue(cell)
	case model.TypeBoolean:
		if b, err := strconv.ParseBool(cell); err == nil {
			return b
		}
		return cell
	default:
		return cell
	}
}
