package batch

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// PromptRecord is one row of a prompt dataset
type PromptRecord struct {
	ID             string `json:"id" parquet:"id,optional"`
	Prompt         string `json:"prompt" parquet:"prompt"`
	NegativePrompt string `json:"negative_prompt" parquet:"negative_prompt,optional"`
	Count          int    `json:"count" parquet:"count,optional"`
	Width          int    `json:"width" parquet:"width,optional"`
	Height         int    `json:"height" parquet:"height,optional"`
	Enhance        bool   `json:"enhance" parquet:"enhance,optional"`
	Refine         bool   `json:"refine" parquet:"refine,optional"`
}

// Loader reads prompt datasets in JSONL or Parquet format
type Loader struct {
	datasetPath string
}

// NewLoader creates a new dataset loader
func NewLoader(datasetPath string) *Loader {
	return &Loader{
		datasetPath: datasetPath,
	}
}

// Load reads up to limit records. A limit of 0 reads everything.
func (l *Loader) Load(limit int) ([]PromptRecord, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))

	var records []PromptRecord
	var err error
	switch ext {
	case ".parquet":
		records, err = l.loadParquet(limit)
	case ".jsonl", ".json":
		records, err = l.loadJSONL(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = fmt.Sprintf("%04d", i+1)
		}
	}
	return records, nil
}

func (l *Loader) loadJSONL(limit int) ([]PromptRecord, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var records []PromptRecord
	scanner := bufio.NewScanner(file)

	lineNum := 0
	for scanner.Scan() {
		if limit > 0 && len(records) >= limit {
			break
		}
		lineNum++
		line := scanner.Bytes()

		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var record PromptRecord
		if err := json.Unmarshal(line, &record); err != nil {
			// Skip malformed lines but continue
			slog.Warn("Failed to parse JSON line", "line", lineNum, "err", err)
			continue
		}

		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Loaded JSONL dataset", "path", l.datasetPath, "records", len(records))
	return records, nil
}

func (l *Loader) loadParquet(limit int) ([]PromptRecord, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[PromptRecord](pf)
	defer reader.Close()

	records, err := readRows(reader, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}

	slog.Debug("Loaded Parquet dataset", "path", l.datasetPath, "records", len(records))
	return records, nil
}

type rowReader interface {
	Read(rows []PromptRecord) (int, error)
}

// readRows reads until io.EOF or limit. Any other read error is returned.
func readRows(reader rowReader, limit int) ([]PromptRecord, error) {
	var records []PromptRecord
	rows := make([]PromptRecord, 128)

	for limit <= 0 || len(records) < limit {
		n, err := reader.Read(rows)
		if n > 0 {
			if limit > 0 && n > limit-len(records) {
				n = limit - len(records)
			}
			records = append(records, rows[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}
