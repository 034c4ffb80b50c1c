// Package airports resolves IATA airport codes to country names from an embedded table.
package airports

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/service"
)

//go:embed airports.csv
var airportsCSV []byte

type Directory struct {
	countries map[string]string
}

// NewDirectory loads the embedded airport table.
func NewDirectory() (*Directory, error) {
	return parse(airportsCSV)
}

func parse(data []byte) (*Directory, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse airport table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("airport table is empty")
	}

	countries := make(map[string]string, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 2 {
			return nil, fmt.Errorf("airport table line %d: want 2 fields, got %d", i+2, len(rec))
		}
		countries[model.NormalizeAirportCode(rec[0])] = strings.TrimSpace(rec[1])
	}
	return &Directory{countries: countries}, nil
}

func (d *Directory) CountryForAirport(code string) (string, error) {
	country, ok := d.countries[model.NormalizeAirportCode(code)]
	if !ok {
		return "", fmt.Errorf("%w: %s", service.ErrUnknownAirport, code)
	}
	return country, nil
}
