// Package export renders billing worksets as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/invosuite/billdesk/internal/records"
	"github.com/invosuite/billdesk/internal/types"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Billing Data"

// Filename builds the download name for a workset export.
func Filename(clientName, product string) string {
	return fmt.Sprintf("%s_%s_billing_data.xlsx", clientName, product)
}

// Workbook projects a workset snapshot into a workbook: one header row of
// field display names in schema order, then one row per record with raw
// cell values. An empty record set is a user error, not an empty file.
func Workbook(snap *records.Snapshot) (*excelize.File, error) {
	if len(snap.Records) == 0 {
		return nil, types.NewValidationError("records", "no billing data to export")
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	// Header row
	for col, fid := range snap.FieldOrder {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, snap.Schema[fid].Name); err != nil {
			return nil, err
		}
	}

	// Data rows, ordered by record id for a stable projection
	ids := make([]string, 0, len(snap.Records))
	for id := range snap.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for row, id := range ids {
		rec := snap.Records[id]
		for col, fid := range snap.FieldOrder {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, rec[fid].Value.String()); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// Write streams the workbook for a snapshot to w.
func Write(w io.Writer, snap *records.Snapshot) error {
	f, err := Workbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
