package panel

import "math"

// Generation labels in cohort order; the index is the generation code
var Generations = []string{"Post War", "Boomers", "Gen X", "Millennials", "Gen Z"}

// GenerationOf maps a birth year to its generation label and code.
// Unknown birth years return an empty label and code -1.
func GenerationOf(birthYear float64) (string, int) {
	if math.IsNaN(birthYear) {
		return "", -1
	}
	code := 4
	switch {
	case birthYear >= 1928 && birthYear <= 1945:
		code = 0
	case birthYear >= 1946 && birthYear <= 1964:
		code = 1
	case birthYear >= 1965 && birthYear <= 1980:
		code = 2
	case birthYear >= 1981 && birthYear <= 1996:
		code = 3
	}
	return Generations[code], code
}

// age at signup: registration year minus birth year
func age(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		tx := g.Txns[0]
		v := math.NaN()
		if tx.HasBirthYear() && !tx.RegistrationDate.IsZero() {
			v = float64(tx.RegistrationDate.Year()) - tx.BirthYear
		}
		return func(r *Row) { r.Age = v }
	}), nil
}

func female(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		v := g.Txns[0].IsFemale
		return func(r *Row) { r.IsFemale = v }
	}), nil
}

// RegionCodes assigns codes to distinct non-empty regions in order of first
// appearance. Callers pass regions in user then month order.
func RegionCodes(regions []string) map[string]int {
	codes := make(map[string]int)
	for _, r := range regions {
		if r == "" {
			continue
		}
		if _, ok := codes[r]; !ok {
			codes[r] = len(codes)
		}
	}
	return codes
}

// region takes the first observed region of each month. Codes are assigned
// from the table's region vocabulary and recomputed on the gathered panel.
func region(t *Table, _ Params) (Output, error) {
	names := make([]string, 0, len(t.groups))
	for _, g := range t.groups {
		names = append(names, g.Txns[0].Region)
	}
	codes := RegionCodes(names)
	return perGroup(t, func(g Group) Setter {
		tx := g.Txns[0]
		name, urban := tx.Region, tx.IsUrban
		code, ok := codes[name]
		if !ok {
			code = -1
		}
		return func(r *Row) {
			r.Region = name
			r.IsUrban = urban
			r.RegionCode = code
		}
	}), nil
}

func generation(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		label, code := GenerationOf(g.Txns[0].BirthYear)
		return func(r *Row) {
			r.Generation = label
			r.GenerationCode = code
		}
	}), nil
}
