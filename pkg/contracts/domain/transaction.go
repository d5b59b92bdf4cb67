package domain

import (
	"math"
	"strings"
	"time"
)

// Transaction represents a single ledger entry of a user account.
// Amounts are signed: debits positive, credits negative.
type Transaction struct {
	ID               int64       `json:"id"`
	UserID           int64       `json:"user_id"`
	AccountID        int64       `json:"account_id"`
	AccountType      AccountType `json:"account_type"`
	AccountCreated   time.Time   `json:"account_created"`
	Date             time.Time   `json:"date" validate:"required"`
	Amount           float64     `json:"amount"`
	IsDebit          bool        `json:"is_debit"`
	Description      string      `json:"desc,omitempty"`
	TagAuto          string      `json:"tag_auto"`
	TagManual        string      `json:"tag_manual,omitempty"`
	Merchant         string      `json:"merchant,omitempty"`
	BusinessLine     string      `json:"business_line,omitempty"`
	TagGroup         TagGroup    `json:"tag_group"`
	BirthYear        float64     `json:"birth_year"`
	IsFemale         float64     `json:"is_female"`
	RegistrationDate time.Time   `json:"user_registration_date" validate:"required"`
	Region           string      `json:"region_name"`
	IsUrban          float64     `json:"is_urban"`
}

// YM returns the calendar month the transaction falls into
func (t Transaction) YM() YearMonth {
	return YearMonthOf(t.Date)
}

// RegistrationYM returns the calendar month of the user's app signup
func (t Transaction) RegistrationYM() YearMonth {
	return YearMonthOf(t.RegistrationDate)
}

// HasBirthYear reports whether the birth year is known
func (t Transaction) HasBirthYear() bool {
	return !math.IsNaN(t.BirthYear)
}

// AccountType represents the kind of account a transaction was posted to
type AccountType string

const (
	AccountTypeCurrent    AccountType = "current"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCreditCard AccountType = "credit card"
	AccountTypeOther      AccountType = "other"
)

// ParseAccountType normalises a raw account type value
func ParseAccountType(s string) AccountType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "current":
		return AccountTypeCurrent
	case "savings", "saving":
		return AccountTypeSavings
	case "credit card", "credit_card", "creditcard":
		return AccountTypeCreditCard
	default:
		return AccountTypeOther
	}
}

// TagGroup is the semantic grouping of a transaction's tags
type TagGroup string

const (
	TagGroupIncome    TagGroup = "income"
	TagGroupSpend     TagGroup = "spend"
	TagGroupTransfers TagGroup = "transfers"
	TagGroupOther     TagGroup = "other"
)

// ParseTagGroup normalises a raw tag group value
func ParseTagGroup(s string) TagGroup {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return TagGroupIncome
	case "spend":
		return TagGroupSpend
	case "transfers", "transfer":
		return TagGroupTransfers
	default:
		return TagGroupOther
	}
}
