package testutil

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"evalpanel/pkg/contracts/domain"
)

// LedgerHeader is the column order written by WriteLedgerCSV
var LedgerHeader = []string{
	"id", "user_id", "account_id", "account_type", "account_created", "date",
	"amount", "is_debit", "desc", "tag_auto", "tag_manual", "merchant",
	"business_line", "tag_group", "birth_year", "is_female",
	"user_registration_date", "region_name", "is_urban",
}

// WriteLedgerCSV writes transactions in the ledger export format
func WriteLedgerCSV(w io.Writer, txns []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LedgerHeader); err != nil {
		return err
	}
	for _, tx := range txns {
		record := []string{
			strconv.FormatInt(tx.ID, 10),
			strconv.FormatInt(tx.UserID, 10),
			strconv.FormatInt(tx.AccountID, 10),
			string(tx.AccountType),
			formatDate(tx.AccountCreated.IsZero(), tx.AccountCreated.Format("2006-01-02")),
			tx.Date.Format("2006-01-02"),
			strconv.FormatFloat(tx.Amount, 'f', -1, 64),
			strconv.FormatBool(tx.IsDebit),
			tx.Description,
			tx.TagAuto,
			tx.TagManual,
			tx.Merchant,
			tx.BusinessLine,
			string(tx.TagGroup),
			formatOptional(tx.BirthYear),
			formatOptional(tx.IsFemale),
			tx.RegistrationDate.Format("2006-01-02"),
			tx.Region,
			formatOptional(tx.IsUrban),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(zero bool, s string) string {
	if zero {
		return ""
	}
	return s
}

func formatOptional(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
