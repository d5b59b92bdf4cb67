// Package shared holds helpers used by more than one package of the panel
// pipeline. The testutil subpackage provides transaction fixtures and a log
// capturing slog handler for package tests.
//
// Example usage:
//
//	user := testutil.NewUser(1, domain.NewYearMonth(2018, time.March))
//	txns := user.Months(domain.NewYearMonth(2018, time.January), 6, testutil.DefaultPlan())
//
// Nothing in this package may import the pipeline packages it is used to test.
package shared
