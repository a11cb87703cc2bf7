package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// WriteXLSX writes a workbook with one sheet per rendered report: the
// summary statistics on top and the per-run values below.
func WriteXLSX(w io.Writer, reports []Rendered) error {
	f := excelize.NewFile()
	defer f.Close()

	first := ""
	for i, r := range reports {
		name := sheetName(i, r)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, r); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		if first == "" {
			first = name
		}
	}
	if first != "" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
		idx, err := f.GetSheetIndex(first)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, r Rendered) error {
	row := 1
	put := func(values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := put("Model", r.Model, "Extractor", r.Extractor, "Runs", r.Runs, "Errors", r.Errors); err != nil {
		return err
	}
	row++

	if err := put("Field", "Description", "Most Common", "Agreement", "Samples", "Distinct", "Average", "Note"); err != nil {
		return err
	}
	for _, fld := range r.Fields {
		var avg any
		if fld.Mean != nil {
			avg = *fld.Mean
		}
		if err := put(fld.Name, fld.Description, cellValue(fld.MajorityValue), fld.AgreementRatio,
			fld.Samples, len(fld.DistinctValues), avg, fld.Note); err != nil {
			return err
		}
	}
	row++

	header := []any{"Run"}
	for _, fld := range r.Fields {
		header = append(header, fld.Label())
	}
	if err := put(append(header, "Error")...); err != nil {
		return err
	}
	for _, run := range r.Rows {
		line := []any{run.Run}
		for _, v := range run.Values {
			line = append(line, cellValue(v))
		}
		if err := put(append(line, run.Error)...); err != nil {
			return err
		}
	}

	return f.SetColWidth(sheet, "A", "C", 22)
}

// cellValue keeps scalars typed so numbers stay numeric in the sheet.
func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, float64, bool:
		return v
	}
	return FormatValue(v)
}

// sheetName is unique per index and within Excel's limits.
func sheetName(i int, r Rendered) string {
	name := fmt.Sprintf("%d %s %s", i+1, r.Model, r.Extractor)
	name = strings.Map(func(c rune) rune {
		if strings.ContainsRune(`[]:*?/\`, c) {
			return '_'
		}
		return c
	}, strings.TrimSpace(name))
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
