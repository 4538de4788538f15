package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/forecast/internal/model"
)

// Header is the CSV header of a history export.
const Header = "run_id,recorded_at,basis_date,target_date,balance,past,start_balance,salary,bills,credit_cards"

const (
	numFields     = 10
	colRunID      = 0
	colRecordedAt = 1
	colBasisDate  = 2
	colTargetDate = 3
	colBalance    = 4
	colPast       = 5
	colStart      = 6
	colSalary     = 7
	colBills      = 8
	colCards      = 9
)

// WriteRecords writes records to w (including header).
func WriteRecords(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range records {
		if err := cw.Write(MarshalRecord(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRecord converts a Record to a CSV row. Checkpoint columns are
// empty for past-date predictions.
func MarshalRecord(r Record) []string {
	row := make([]string, numFields)
	row[colRunID] = r.RunID
	row[colRecordedAt] = r.RecordedAt.UTC().Format(time.RFC3339)
	row[colBasisDate] = r.BasisDate.UTC().Format(time.RFC3339)
	row[colTargetDate] = r.TargetDate.Format(time.DateOnly)
	row[colBalance] = r.Balance.StringFixed(2)
	row[colPast] = strconv.FormatBool(r.Past)

	if len(r.Checkpoints) > 0 {
		row[colStart] = r.Delta(model.StepBalance).StringFixed(2)
		row[colSalary] = r.Delta(model.StepSalary).StringFixed(2)
		row[colBills] = r.Delta(model.StepBills).StringFixed(2)
		row[colCards] = r.Delta(model.StepCreditCards).StringFixed(2)
	}
	return row
}
