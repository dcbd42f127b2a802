// Package catalog loads the price catalog and the work-type taxonomy and indexes them for search.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/katalog/internal/common"
)

// Record is one raw catalog or taxonomy row as supplied by a source.
type Record struct {
	Price       *float64 `json:"price,omitempty" yaml:"price"`
	Code        string   `json:"code" yaml:"code"`
	Name        string   `json:"name" yaml:"name"`
	Unit        string   `json:"unit,omitempty" yaml:"unit"`
	Description string   `json:"description,omitempty" yaml:"description"`
	ParentCode  string   `json:"parent_code,omitempty" yaml:"parent_code"`
}

// Source supplies raw records. Storage format is the source's concern.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

// StaticSource serves records held in memory.
type StaticSource []Record

// Records returns the records.
func (s StaticSource) Records(_ context.Context) ([]Record, error) {
	return s, nil
}

// Format is an on-disk representation of records.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// FileSource reads records from a file. When Format is empty it is inferred
// from the file extension.
type FileSource struct {
	Path   string
	Format Format
}

// Records reads and decodes the file.
func (s FileSource) Records(_ context.Context) ([]Record, error) {
	format := s.Format
	if format == "" {
		var err error
		format, err = FormatFromPath(s.Path)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f, format)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", common.ErrUnknownFormat, path)
	}
}

// Decode parses records in the given format.
func Decode(r io.Reader, format Format) ([]Record, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(r)
	case FormatCSV:
		return decodeCSV(r)
	case FormatYAML:
		return decodeYAML(r)
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownFormat, format)
	}
}

// decodeJSON accepts either a bare array or an object with an "items" array.
func decodeJSON(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Items []Record `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
		return wrapped.Items, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	return records, nil
}

func decodeYAML(r io.Reader) ([]Record, error) {
	var records []Record
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode yaml: %w", err)
	}
	return records, nil
}

// decodeCSV reads code, name, unit, price, description and parent columns.
// Semicolons or commas may separate fields; a header row is skipped.
func decodeCSV(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if firstLine, _, _ := strings.Cut(string(head), "\n"); strings.Contains(firstLine, ";") {
		reader.Comma = ';'
	}

	var records []Record
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv line %d: %w", line+1, err)
		}
		line++

		if len(row) < 2 {
			continue
		}
		code := strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff"))
		if line == 1 && isHeader(code) {
			continue
		}

		rec := Record{
			Code: code,
			Name: strings.TrimSpace(row[1]),
		}
		if len(row) > 2 {
			rec.Unit = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			rec.Price = parsePrice(row[3])
		}
		if len(row) > 4 {
			rec.Description = strings.TrimSpace(row[4])
		}
		if len(row) > 5 {
			rec.ParentCode = strings.TrimSpace(row[5])
		}
		records = append(records, rec)
	}

	return records, nil
}

func isHeader(field string) bool {
	switch strings.ToLower(field) {
	case "code", "kod", "kód":
		return true
	}
	return false
}

// parsePrice accepts "1 234,50", "1234.5" and empty values.
func parsePrice(raw string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0':
			return -1
		case ',':
			return '.'
		}
		return r
	}, strings.TrimSpace(raw))
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}
