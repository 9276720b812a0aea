// Package candidacy validates uploaded candidate lists for primaries-style
// votings before they may be used to build questions and options.
package candidacy

import "strings"

// Columns is the exact header a candidate list must carry, in order.
var Columns = []string{
	"Name",
	"FirstSurname",
	"SecondSurname",
	"Sex",
	"Province",
	"PoliticalParty",
	"PrimaryProcess",
}

// Row is one candidate entry, mapped positionally from a dataset record.
type Row struct {
	Name           string
	FirstSurname   string
	SecondSurname  string
	Sex            string
	Province       string
	Party          string
	PrimaryProcess string
}

// FullName joins the candidate's name components.
func (r Row) FullName() string {
	return strings.TrimSpace(r.Name + " " + r.FirstSurname + " " + r.SecondSurname)
}

// Dataset is a raw tabular candidate list as uploaded: a header and its
// records. Records are only mapped to typed rows once the header has been
// verified.
type Dataset struct {
	Header  []string
	Records [][]string
}

// rows maps the records to typed rows. Only valid after the header checks
// have passed. Short records are padded with blank fields so a truncated
// row surfaces as a rule violation rather than a crash.
func (ds *Dataset) rows() []Row {
	rows := make([]Row, len(ds.Records))
	for i, rec := range ds.Records {
		for len(rec) < len(Columns) {
			rec = append(rec, "")
		}
		rows[i] = Row{
			Name:           rec[0],
			FirstSurname:   rec[1],
			SecondSurname:  rec[2],
			Sex:            rec[3],
			Province:       rec[4],
			Party:          rec[5],
			PrimaryProcess: rec[6],
		}
	}
	return rows
}
