package panel

import "evalpanel/pkg/contracts/domain"

// registrationMonth returns the signup month recorded on a group's transactions
func registrationMonth(g Group) domain.YearMonth {
	return g.Txns[0].RegistrationYM()
}

func registrationYM(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		reg := registrationMonth(g)
		return func(r *Row) { r.UserRegYM = reg }
	}), nil
}

// Treated reports whether ym is at or after the signup month. Treatment is
// defined on calendar months, so a mid-month signup treats the whole month.
func Treated(ym, reg domain.YearMonth) int {
	if ym.Before(reg) {
		return 0
	}
	return 1
}

// TimeToTreatment is the signed number of months from signup to ym
func TimeToTreatment(ym, reg domain.YearMonth) int {
	return ym.Sub(reg)
}

func treatment(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		v := Treated(g.Key.YM, registrationMonth(g))
		return func(r *Row) { r.T = v }
	}), nil
}

func timeToTreatment(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		v := TimeToTreatment(g.Key.YM, registrationMonth(g))
		return func(r *Row) { r.TT = v }
	}), nil
}
