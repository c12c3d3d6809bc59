package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/xuri/excelize/v2"
)

// XLSXFileName is the suggested name of the spreadsheet download.
const XLSXFileName = "地址距离计算结果.xlsx"

const sheetName = "结果"

// WriteXLSX writes results as a single-sheet workbook with the same columns as WriteCSV.
// Numeric cells are stored as numbers so the sheet can be sorted and summed.
func WriteXLSX(w io.Writer, results []models.AddressResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, res := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := xlsxRow(res)
		if err = f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "E", "E", 30); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	return nil
}

func xlsxRow(res models.AddressResult) []any {
	record := Record(res)
	row := []any{record[0], record[1], record[2], record[3], record[4]}

	if res.Distance != nil {
		km, _ := strconv.ParseFloat(record[1], 64)
		row[1] = km
	}
	if res.Location != nil {
		row[2] = res.Location.Longitude
		row[3] = res.Location.Latitude
	}

	return row
}

// ReadXLSX reads the rows of a workbook written by WriteXLSX as strings, header included.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	return rows, nil
}
