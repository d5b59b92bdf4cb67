package panel

import (
	"sort"

	"evalpanel/pkg/contracts/domain"
)

// Group holds the transactions of one user-month
type Group struct {
	Key  Key
	Txns []domain.Transaction
}

// UserGroup holds all transactions of one user and the indices of its month groups
type UserGroup struct {
	UserID int64
	Txns   []domain.Transaction
	Groups []int
}

// Table is a read-only transaction table grouped by user and user-month.
// Groups are contiguous sub-slices of one sorted copy of the input.
type Table struct {
	txns   []domain.Transaction
	groups []Group
	users  []UserGroup
	index  map[Key]int
}

// NewTable sorts a copy of txns by user, month and date and builds the groupings
func NewTable(txns []domain.Transaction) *Table {
	sorted := make([]domain.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})

	t := &Table{txns: sorted, index: make(map[Key]int)}

	var starts []int
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].UserID == sorted[start].UserID && sorted[i].YM() == sorted[start].YM() {
			continue
		}
		key := Key{UserID: sorted[start].UserID, YM: sorted[start].YM()}
		t.index[key] = len(t.groups)
		t.groups = append(t.groups, Group{Key: key, Txns: sorted[start:i:i]})
		starts = append(starts, start)
		start = i
	}

	userStart := 0
	for gi := range t.groups {
		next := gi + 1
		if next < len(t.groups) && t.groups[next].Key.UserID == t.groups[gi].Key.UserID {
			continue
		}
		lo := starts[userStart]
		hi := starts[gi] + len(t.groups[gi].Txns)
		ug := UserGroup{UserID: t.groups[gi].Key.UserID, Txns: sorted[lo:hi:hi]}
		for k := userStart; k <= gi; k++ {
			ug.Groups = append(ug.Groups, k)
		}
		t.users = append(t.users, ug)
		userStart = next
	}

	return t
}

// Len returns the number of transactions
func (t *Table) Len() int {
	return len(t.txns)
}

// Transactions returns the sorted transactions
func (t *Table) Transactions() []domain.Transaction {
	return t.txns
}

// Groups returns the user-month groups in key order
func (t *Table) Groups() []Group {
	return t.groups
}

// Users returns the per-user groupings in user order
func (t *Table) Users() []UserGroup {
	return t.users
}

// Keys returns all user-month keys in order
func (t *Table) Keys() []Key {
	keys := make([]Key, len(t.groups))
	for i, g := range t.groups {
		keys[i] = g.Key
	}
	return keys
}

// Group returns the transactions of one user-month
func (t *Table) Group(key Key) ([]domain.Transaction, bool) {
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.groups[i].Txns, true
}
