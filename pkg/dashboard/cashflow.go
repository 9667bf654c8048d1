package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/quickentry"
)

var ErrNegativeAmount = errors.New("amount must not be negative")

// CashFlow is the cash-flow widget header.
type CashFlow struct {
	Balance      decimal.Decimal `json:"balance"`
	TodayIncome  decimal.Decimal `json:"today_income"`
	TodayExpense decimal.Decimal `json:"today_expense"`
}

// TransactionUpdate carries the fields to change; nil fields are left alone.
type TransactionUpdate struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Type        *core.TxType     `json:"type,omitempty"`
	Description *string          `json:"description,omitempty"`
	Date        *time.Time       `json:"date,omitempty"`
}

// ListTransactions returns transactions newest first.
func (s *Service) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := list[core.Transaction](ctx, s, core.KindTransaction)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	return txs, nil
}

// AddTransaction stores tx. A zero date means now and an empty description
// gets the default for its type.
func (s *Service) AddTransaction(ctx context.Context, tx core.Transaction) core.Mutation {
	if err := checkTxType(tx.Type); err != nil {
		return core.Failed(err)
	}
	if tx.Amount.IsNegative() {
		return core.Failed(ErrNegativeAmount)
	}
	tx.Description = strings.TrimSpace(tx.Description)
	if tx.Description == "" {
		tx.Description = quickentry.DefaultDescription(tx.Type)
	}
	if tx.Date.IsZero() {
		tx.Date = s.now()
	}
	tx.ID = ""
	return s.insert(ctx, core.KindTransaction, tx)
}

// QuickAddTransaction parses "+/-amount description" and stores it dated now.
func (s *Service) QuickAddTransaction(ctx context.Context, input string) core.Mutation {
	entry, err := quickentry.ParseTransaction(input)
	if err != nil {
		s.logger.Debug("quick entry rejected", "err", quickentry.Describe(err))
		return core.Failed(err)
	}
	return s.AddTransaction(ctx, core.Transaction{
		Amount:      entry.Amount,
		Type:        entry.Type,
		Description: entry.Description,
		Date:        s.now(),
	})
}

func (s *Service) UpdateTransaction(ctx context.Context, id string, u TransactionUpdate) core.Mutation {
	set := map[string]any{}
	if u.Amount != nil {
		if u.Amount.IsNegative() {
			return core.Failed(ErrNegativeAmount)
		}
		set["amount"] = *u.Amount
	}
	if u.Type != nil {
		if err := checkTxType(*u.Type); err != nil {
			return core.Failed(err)
		}
		set["type"] = *u.Type
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Date != nil {
		set["date"] = *u.Date
	}
	return s.update(ctx, core.KindTransaction, id, set)
}

func (s *Service) DeleteTransaction(ctx context.Context, id string) core.Mutation {
	return s.delete(ctx, core.KindTransaction, id)
}

func (s *Service) CashFlowSummary(ctx context.Context) (CashFlow, error) {
	txs, err := list[core.Transaction](ctx, s, core.KindTransaction)
	if err != nil {
		return CashFlow{}, err
	}
	return Summarize(txs, s.now()), nil
}

// Summarize computes the balance over all transactions and the income and
// expense dated on now's calendar day.
func Summarize(txs []core.Transaction, now time.Time) CashFlow {
	cf := CashFlow{Balance: decimal.Zero, TodayIncome: decimal.Zero, TodayExpense: decimal.Zero}
	today := startOfDay(now)
	for _, tx := range txs {
		cf.Balance = cf.Balance.Add(tx.Signed())
		if !startOfDay(tx.Date.In(now.Location())).Equal(today) {
			continue
		}
		switch tx.Type {
		case core.TxIncome:
			cf.TodayIncome = cf.TodayIncome.Add(tx.Amount)
		case core.TxExpense:
			cf.TodayExpense = cf.TodayExpense.Add(tx.Amount)
		}
	}
	return cf
}

func checkTxType(t core.TxType) error {
	switch t {
	case core.TxIncome, core.TxExpense:
		return nil
	}
	return fmt.Errorf("unknown transaction type %q", t)
}
