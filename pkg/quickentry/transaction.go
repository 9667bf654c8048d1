package quickentry

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/modoterra/lifedash/pkg/core"
)

var transactionRe = regexp.MustCompile(`^([+-])(\d*\.?\d+)\s*(.*)$`)

// TransactionEntry is the result of parsing a cash-flow quick-entry line.
type TransactionEntry struct {
	Amount      decimal.Decimal
	Type        core.TxType
	Description string
}

// ParseTransaction parses "+amount description" (income) or
// "-amount description" (expense). The description defaults to "Income" or
// "Expense". The returned amount is never negative.
func ParseTransaction(input string) (TransactionEntry, error) {
	m := transactionRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return TransactionEntry{}, reject(input, ErrFormat)
	}
	sign, amountStr, description := m[1], m[2], strings.TrimSpace(m[3])

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return TransactionEntry{}, reject(input, ErrInvalidAmount)
	}

	entry := TransactionEntry{Amount: amount.Abs(), Type: core.TxIncome, Description: description}
	if sign == "-" {
		entry.Type = core.TxExpense
	}
	if entry.Description == "" {
		entry.Description = DefaultDescription(entry.Type)
	}
	return entry, nil
}

// DefaultDescription is used when a transaction is entered without one.
func DefaultDescription(t core.TxType) string {
	if t == core.TxExpense {
		return "Expense"
	}
	return "Income"
}

// FormatTransaction renders an entry back into quick-entry form.
func FormatTransaction(e TransactionEntry) string {
	sign := "+"
	if e.Type == core.TxExpense {
		sign = "-"
	}
	return sign + e.Amount.String() + " " + e.Description
}
