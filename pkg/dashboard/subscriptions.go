package dashboard

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/modoterra/lifedash/pkg/core"
)

const (
	DefaultSubscriptionName = "New Subscription"
	DefaultSubscriptionInfo = "Monthly • Due date"
)

// SubscriptionUpdate carries the fields to change; nil fields are left alone.
type SubscriptionUpdate struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Name   *string          `json:"name,omitempty"`
	Info   *string          `json:"info,omitempty"`
}

func (s *Service) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return list[core.Subscription](ctx, s, core.KindSubscription)
}

// AddSubscription stores sub, filling in the placeholder name and info.
func (s *Service) AddSubscription(ctx context.Context, sub core.Subscription) core.Mutation {
	if sub.Amount.IsNegative() {
		return core.Failed(ErrNegativeAmount)
	}
	if sub.Name == "" {
		sub.Name = DefaultSubscriptionName
	}
	if sub.Info == "" {
		sub.Info = DefaultSubscriptionInfo
	}
	sub.ID = ""
	return s.insert(ctx, core.KindSubscription, sub)
}

func (s *Service) UpdateSubscription(ctx context.Context, id string, u SubscriptionUpdate) core.Mutation {
	set := map[string]any{}
	if u.Amount != nil {
		if u.Amount.IsNegative() {
			return core.Failed(ErrNegativeAmount)
		}
		set["amount"] = *u.Amount
	}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Info != nil {
		set["info"] = *u.Info
	}
	return s.update(ctx, core.KindSubscription, id, set)
}

func (s *Service) DeleteSubscription(ctx context.Context, id string) core.Mutation {
	return s.delete(ctx, core.KindSubscription, id)
}

// MonthlyTotal sums subscription amounts.
func MonthlyTotal(subs []core.Subscription) decimal.Decimal {
	total := decimal.Zero
	for _, sub := range subs {
		total = total.Add(sub.Amount)
	}
	return total
}
