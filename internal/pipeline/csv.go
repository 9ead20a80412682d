package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/voyagekit/geotally/internal/model"
)

// Column names in a location-history export. The export uses the German
// "Titel" header for the place title.
const (
	titleColumn = "Titel"
	urlColumn   = "URL"
)

// readRows loads every row of the export in file order. Short rows are
// tolerated; only the header is required to name a URL column.
func readRows(path string) ([]model.LocationQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	titleIdx, urlIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case titleColumn:
			titleIdx = i
		case urlColumn:
			urlIdx = i
		}
	}
	if urlIdx < 0 {
		return nil, fmt.Errorf("csv %s: missing %q column", path, urlColumn)
	}

	var rows []model.LocationQuery
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		var q model.LocationQuery
		if titleIdx >= 0 && titleIdx < len(record) {
			q.Title = record[titleIdx]
		}
		if urlIdx < len(record) {
			q.URL = record[urlIdx]
		}
		rows = append(rows, q)
	}
	return rows, nil
}
