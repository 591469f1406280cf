package export

import (
	"fmt"
	"io"
	"time"

	"shiftclock/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Pending punches"

var headers = []string{"Entry ID", "Employee ID", "Employee", "Action", "Punched at", "Attempts", "Last attempt", "Last error", "Stuck"}

// WriteQueueReport renders the pending queue as an xlsx workbook for
// back-office review. Entries at or past maxAttempts are flagged as stuck.
func WriteQueueReport(w io.Writer, entries []models.QueuedClockEntry, maxAttempts int) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for col, title := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for row, entry := range entries {
		lastError := ""
		if entry.LastError != nil {
			lastError = *entry.LastError
		}
		stuck := ""
		if maxAttempts > 0 && entry.Attempts >= maxAttempts {
			stuck = "yes"
		}
		lastAttempt := ""
		if !entry.LastAttempt.IsZero() {
			lastAttempt = entry.LastAttempt.Format(time.RFC3339)
		}

		values := []interface{}{
			entry.ID,
			entry.EmployeeID,
			entry.EmployeeName,
			string(entry.ExpectedAction),
			entry.Timestamp.Format(time.RFC3339),
			entry.Attempts,
			lastAttempt,
			lastError,
			stuck,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
