/*
Package csvsource parses uploaded wholesaler CSVs into engine source rows.

PURPOSE:
  Wholesaler exports are messy: preamble lines before the header, currency
  symbols and thousands separators in the cost column, stray blank rows.
  This package locates the header by scanning for the required columns,
  cleans each cost cell and emits only validated rows. Invalid rows are
  dropped silently and never reach the engine.

REQUIRED COLUMNS:
  Part_Num and Trade_Cost. Description is optional and carried through for
  preview display.

ROUNDING:
  Costs are rounded to two decimal places here, exactly once. The engine
  compares the values as parsed with no further rounding.
*/
package csvsource

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/partsync/pricesync/engine"
)

const (
	colIdentifier  = "Part_Num"
	colCost        = "Trade_Cost"
	colDescription = "Description"
)

var (
	// ErrMissingColumns is returned when no row contains both required
	// column headers.
	ErrMissingColumns = errors.New("csv must contain columns Part_Num and Trade_Cost")

	// ErrNoRows is returned when the file parses but yields no valid rows.
	ErrNoRows = errors.New("csv contains no valid rows")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseRows parses CSV bytes into validated source rows, preserving file
// order.
func ParseRows(content []byte) ([]engine.SourceRow, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	headerIdx, columns := findHeader(records)
	if headerIdx < 0 {
		return nil, ErrMissingColumns
	}

	idIdx := columns[colIdentifier]
	costIdx := columns[colCost]
	descIdx, hasDesc := columns[colDescription]

	var rows []engine.SourceRow
	for _, record := range records[headerIdx+1:] {
		if len(record) <= idIdx || len(record) <= costIdx {
			continue
		}
		identifier := strings.TrimSpace(record[idIdx])
		if identifier == "" {
			continue
		}
		cost, ok := parseCost(record[costIdx])
		if !ok {
			continue
		}

		row := engine.SourceRow{Identifier: identifier, ProposedCost: cost}
		if hasDesc && len(record) > descIdx {
			row.Description = strings.TrimSpace(record[descIdx])
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// findHeader scans for the first row containing both required columns and
// returns its index plus a column-name-to-position map.
func findHeader(records [][]string) (int, map[string]int) {
	for i, record := range records {
		columns := make(map[string]int, len(record))
		for j, cell := range record {
			name := strings.TrimSpace(cell)
			if _, seen := columns[name]; !seen {
				columns[name] = j
			}
		}
		if _, hasID := columns[colIdentifier]; !hasID {
			continue
		}
		if _, hasCost := columns[colCost]; !hasCost {
			continue
		}
		return i, columns
	}
	return -1, nil
}

// costCleaner strips currency symbols and thousands separators. The "Â£"
// sequence is a pound sign seen through a latin-1 re-encode, common in
// wholesaler exports.
var costCleaner = strings.NewReplacer("Â£", "", "£", "", "$", "", ",", "", " ", "")

// parseCost cleans and parses one cost cell, rounded to two decimal
// places. Negative costs are invalid.
func parseCost(cell string) (decimal.Decimal, bool) {
	cleaned := costCleaner.Replace(strings.TrimSpace(cell))
	if cleaned == "" {
		return decimal.Zero, false
	}
	cost, err := decimal.NewFromString(cleaned)
	if err != nil || cost.IsNegative() {
		return decimal.Zero, false
	}
	return cost.Round(2), true
}
