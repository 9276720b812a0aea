package candidacy

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// SchemaError reports a dataset whose header does not match the candidacy
// template, either in column count or in column names.
type SchemaError struct {
	GotColumns int      // columns found, when the count is wrong
	GotHeader  []string // header found, when the names are wrong
}

func (e *SchemaError) Error() string {
	if e.GotHeader != nil {
		return fmt.Sprintf("candidacy: column names must be %v, got %v", Columns, e.GotHeader)
	}
	return fmt.Sprintf("candidacy: dataset must have exactly %d columns, got %d", len(Columns), e.GotColumns)
}

// CoverageError reports a dataset that does not cover every province.
type CoverageError struct {
	Provinces int // distinct provinces found
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("candidacy: provinces without candidates, dataset covers %d of %d", e.Provinces, ProvinceCount)
}

// EligibilityError reports the first candidate that has not gone through a
// primary process.
type EligibilityError struct {
	Row Row
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("candidacy: candidate %s from province %s of party %s has not gone through a primary process",
		e.Row.FullName(), e.Row.Province, e.Row.Party)
}

// GroupSizeError reports a (province, party) candidacy with the wrong
// number of candidates, carrying its member rows.
type GroupSizeError struct {
	Province string
	Party    string
	Rows     []Row
}

func (e *GroupSizeError) Error() string {
	return fmt.Sprintf("candidacy: candidacy (%s, %s) must have exactly %d candidates, got %d:\n%s",
		e.Province, e.Party, GroupSize, len(e.Rows), spew.Sdump(e.Rows))
}

// ParityError reports a (province, party, sex) group breaking the half-
// and-half sex composition, carrying its member rows.
type ParityError struct {
	Province string
	Party    string
	Sex      string
	Rows     []Row
}

func (e *ParityError) Error() string {
	return fmt.Sprintf("candidacy: candidacy (%s, %s) breaks the 1/2 sex ratio for %s, got %d of %d:\n%s",
		e.Province, e.Party, e.Sex, len(e.Rows), ParitySize, spew.Sdump(e.Rows))
}
