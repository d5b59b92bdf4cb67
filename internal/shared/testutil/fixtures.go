package testutil

import (
	"sync/atomic"
	"time"

	"evalpanel/pkg/contracts/domain"
)

var txnSeq atomic.Int64

// NextID returns a process-unique transaction id
func NextID() int64 {
	return txnSeq.Add(1)
}

// User describes the demographic attributes stamped on a user's transactions
type User struct {
	ID         int64
	Registered time.Time
	BirthYear  float64
	IsFemale   float64
	Region     string
	IsUrban    float64
}

// Account ids per user are derived from the user id
func (u User) CurrentAccount() int64 { return u.ID*10 + 1 }
func (u User) SavingsAccount() int64 { return u.ID*10 + 2 }
func (u User) CreditCard() int64     { return u.ID*10 + 3 }

// NewUser returns a working-age user with complete demographics who signed up
// mid-way through reg
func NewUser(id int64, reg domain.YearMonth) User {
	return User{
		ID:         id,
		Registered: time.Date(reg.Year, reg.Month, 15, 0, 0, 0, 0, time.UTC),
		BirthYear:  1985,
		IsFemale:   1,
		Region:     "London",
		IsUrban:    1,
	}
}

// TxnOption customises a fixture transaction
type TxnOption func(*domain.Transaction)

// Txn returns a debit of amount on the user's current account
func (u User) Txn(date time.Time, amount float64, opts ...TxnOption) domain.Transaction {
	tx := domain.Transaction{
		ID:               NextID(),
		UserID:           u.ID,
		AccountID:        u.CurrentAccount(),
		AccountType:      domain.AccountTypeCurrent,
		AccountCreated:   time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
		Date:             date,
		Amount:           amount,
		IsDebit:          true,
		TagAuto:          "groceries",
		TagGroup:         domain.TagGroupSpend,
		BirthYear:        u.BirthYear,
		IsFemale:         u.IsFemale,
		RegistrationDate: u.Registered,
		Region:           u.Region,
		IsUrban:          u.IsUrban,
	}
	for _, opt := range opts {
		opt(&tx)
	}
	return tx
}

// Credit turns the transaction into a credit, negating its amount
func Credit() TxnOption {
	return func(tx *domain.Transaction) {
		tx.IsDebit = false
		if tx.Amount > 0 {
			tx.Amount = -tx.Amount
		}
	}
}

// Tagged sets the auto-tag and tag group
func Tagged(tag string, group domain.TagGroup) TxnOption {
	return func(tx *domain.Transaction) {
		tx.TagAuto = tag
		tx.TagGroup = group
	}
}

// OnAccount moves the transaction to another account
func OnAccount(id int64, at domain.AccountType) TxnOption {
	return func(tx *domain.Transaction) {
		tx.AccountID = id
		tx.AccountType = at
	}
}

// AtMerchant sets the merchant
func AtMerchant(m string) TxnOption {
	return func(tx *domain.Transaction) { tx.Merchant = m }
}

// Described sets the free-text description
func Described(desc string) TxnOption {
	return func(tx *domain.Transaction) { tx.Description = desc }
}

// MonthPlan describes the activity generated for each month of a fixture user
type MonthPlan struct {
	Income     float64
	SpendTxns  int
	Spend      float64
	SavingsIn  float64
	SavingsOut float64
}

// DefaultPlan passes every default funnel threshold
func DefaultPlan() MonthPlan {
	return MonthPlan{Income: 2000, SpendTxns: 12, Spend: 600, SavingsIn: 100}
}

// Month generates one month of activity following plan
func (u User) Month(ym domain.YearMonth, plan MonthPlan) []domain.Transaction {
	day := func(d int) time.Time { return time.Date(ym.Year, ym.Month, d, 0, 0, 0, 0, time.UTC) }

	var txns []domain.Transaction
	if plan.Income > 0 {
		txns = append(txns, u.Txn(day(1), plan.Income, Credit(), Tagged("salary", domain.TagGroupIncome)))
	}
	for i := 0; i < plan.SpendTxns; i++ {
		txns = append(txns, u.Txn(day(2+i%25), plan.Spend/float64(plan.SpendTxns), AtMerchant("tesco")))
	}
	if plan.SavingsIn > 0 {
		txns = append(txns, u.Txn(day(27), plan.SavingsIn, Credit(),
			OnAccount(u.SavingsAccount(), domain.AccountTypeSavings),
			Tagged("transfer", domain.TagGroupTransfers)))
	}
	if plan.SavingsOut > 0 {
		txns = append(txns, u.Txn(day(28), plan.SavingsOut,
			OnAccount(u.SavingsAccount(), domain.AccountTypeSavings),
			Tagged("transfer", domain.TagGroupTransfers)))
	}
	return txns
}

// Months generates n consecutive months of activity starting at from
func (u User) Months(from domain.YearMonth, n int, plan MonthPlan) []domain.Transaction {
	var txns []domain.Transaction
	for i := 0; i < n; i++ {
		txns = append(txns, u.Month(from.AddMonths(i), plan)...)
	}
	return txns
}
