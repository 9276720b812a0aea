package candidacy

const (
	// ProvinceCount is the number of administrative divisions that a
	// candidate list must cover.
	ProvinceCount = 52

	// GroupSize is the mandatory number of candidates per province and
	// party.
	GroupSize = 6

	// ParitySize is the mandatory number of candidates per province,
	// party and sex: half of each group.
	ParitySize = GroupSize / 2

	// affirmative marks a candidate that has gone through primaries.
	affirmative = "yes"
)

// Validate checks an uploaded candidate list against the candidacy rules,
// in order: column count, column names, province coverage, primary-process
// eligibility, group size and sex parity. It stops at the first offending
// row or group and returns an error identifying it; a nil return means the
// dataset is accepted.
func Validate(ds *Dataset) error {
	if len(ds.Header) != len(Columns) {
		return &SchemaError{GotColumns: len(ds.Header)}
	}
	for i, name := range Columns {
		if ds.Header[i] != name {
			return &SchemaError{GotHeader: ds.Header}
		}
	}

	rows := ds.rows()

	if n := countProvinces(rows); n != ProvinceCount {
		return &CoverageError{Provinces: n}
	}

	for _, row := range rows {
		if row.PrimaryProcess != affirmative {
			return &EligibilityError{Row: row}
		}
	}

	keys, groups := groupRows(rows, false)
	for _, key := range keys {
		if members := groups[key]; len(members) != GroupSize {
			return &GroupSizeError{Province: key.province, Party: key.party, Rows: members}
		}
	}

	keys, groups = groupRows(rows, true)
	for _, key := range keys {
		if members := groups[key]; len(members) != ParitySize {
			return &ParityError{Province: key.province, Party: key.party, Sex: key.sex, Rows: members}
		}
	}

	return nil
}

func countProvinces(rows []Row) int {
	seen := make(map[string]bool)
	for _, row := range rows {
		seen[row.Province] = true
	}
	return len(seen)
}

type groupKey struct {
	province string
	party    string
	sex      string
}

// groupRows buckets rows by (province, party), or by (province, party,
// sex) when bySex is set. Keys come back in first-appearance order so that
// validation failures are deterministic.
func groupRows(rows []Row, bySex bool) ([]groupKey, map[groupKey][]Row) {
	var keys []groupKey
	groups := make(map[groupKey][]Row)
	for _, row := range rows {
		key := groupKey{province: row.Province, party: row.Party}
		if bySex {
			key.sex = row.Sex
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}
	return keys, groups
}
