package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// SheetGrid is the raw string contents of one worksheet.
type SheetGrid struct {
	Name string
	Rows [][]string
}

// ReadWorkbook reads an XLSX file and returns every sheet as a string grid.
// Sheet order follows the workbook.
func ReadWorkbook(path string) ([]SheetGrid, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	grids := make([]SheetGrid, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		grids = append(grids, SheetGrid{Name: sheet.Name, Rows: sheetRows(sheet)})
	}
	return grids, nil
}

// ReadSheets reads only the named sheets. A hint naming a sheet the
// workbook does not have is an error so callers can correct the hint.
func ReadSheets(path string, names []string) ([]SheetGrid, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	grids := make([]SheetGrid, 0, len(names))
	for _, name := range names {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found in %s", name, path)
		}
		grids = append(grids, SheetGrid{Name: name, Rows: sheetRows(sheet)})
	}
	return grids, nil
}

func sheetRows(sheet *xlsx.Sheet) [][]string {
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows
}
