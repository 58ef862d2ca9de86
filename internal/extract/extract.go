package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sheetsight/api/internal/model"
)

var (
	// ErrEmptyFile is returned for files with no header row.
	ErrEmptyFile = errors.New("file is empty")
	// ErrNoNumericColumns is returned when no column parses as numeric.
	ErrNoNumericColumns = errors.New("no numeric columns found")
)

// Columns parses CSV bytes into the ordered list of numeric columns.
//
// The first row is the header. A column counts as numeric when every
// non-empty cell parses as a float and at least one such cell exists;
// blank cells are skipped, columns with blank header names are ignored.
// Column order follows the header. The transform is pure: same bytes,
// same result.
func Columns(data []byte) ([]model.Column, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("malformed file: %w", err)
	}

	type column struct {
		name    string
		values  []float64
		numeric bool
	}

	cols := make([]column, len(header))
	for i, name := range header {
		cols[i] = column{name: strings.TrimSpace(name), numeric: true}
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed file: %w", err)
		}
		for i := range cols {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				cols[i].numeric = false
				continue
			}
			cols[i].values = append(cols[i].values, v)
		}
	}

	var out []model.Column
	for _, c := range cols {
		if c.name == "" || !c.numeric || len(c.values) == 0 {
			continue
		}
		out = append(out, model.Column{Name: c.name, Values: c.values})
	}
	if len(out) == 0 {
		return nil, ErrNoNumericColumns
	}
	return out, nil
}
