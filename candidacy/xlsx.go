package candidacy

import (
	"github.com/phayes/errors"
	"github.com/xuri/excelize/v2"
)

var (
	ErrReadFile = errors.New("candidacy: Unable to read candidate file")
)

// DefaultSheet is the sheet candidate lists are uploaded on.
const DefaultSheet = "Hoja1"

// ReadFile loads a candidate list from an xlsx workbook. An empty sheet
// name means DefaultSheet. Short records are padded to the header width so
// that trailing blank cells do not shift fields around.
func ReadFile(path, sheet string) (*Dataset, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, ErrReadFile)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(err, ErrReadFile)
	}
	if len(rows) == 0 {
		return &Dataset{}, nil
	}

	header := rows[0]
	records := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		for len(row) < len(header) {
			row = append(row, "")
		}
		records = append(records, row)
	}

	return &Dataset{Header: header, Records: records}, nil
}
