// Package checkout holds the cart rules and the order/payment
// orchestration that drives a purchase to a terminal state.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gundalf-client/internal/model"
	"gundalf-client/internal/store"
)

// ErrTrialExclusive is the fixed message shown when mixing the free
// trial with paid plans.
var ErrTrialExclusive = errors.New("The Free Trial cannot be combined with other plans.")

// Cart is an ordered collection of selected plans. At most one SERVICE
// plan may be present, and a trial plan excludes everything else.
// Not safe for concurrent use; the CLI mutates it from one goroutine.
type Cart struct {
	items []model.Plan
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// Items returns the cart entries in insertion order.
func (c *Cart) Items() []model.Plan {
	out := make([]model.Plan, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of entries.
func (c *Cart) Len() int { return len(c.items) }

// Empty reports whether the cart has no entries.
func (c *Cart) Empty() bool { return len(c.items) == 0 }

// Contains reports whether the same catalog entry is already selected.
func (c *Cart) Contains(plan model.Plan) bool {
	for _, p := range c.items {
		if p.Same(plan) {
			return true
		}
	}
	return false
}

// HasTrial reports whether a trial plan is selected.
func (c *Cart) HasTrial() bool {
	for _, p := range c.items {
		if p.IsTrial {
			return true
		}
	}
	return false
}

// Toggle adds or removes a plan:
//   - a plan already in the cart is removed;
//   - selecting a trial replaces the entire cart with just that entry;
//   - any addition while a trial is present is rejected;
//   - a second SERVICE plan replaces the existing one;
//   - ADDON plans accumulate.
func (c *Cart) Toggle(plan model.Plan) error {
	if c.Contains(plan) {
		c.remove(plan)
		return nil
	}

	if plan.IsTrial {
		c.items = []model.Plan{plan}
		return nil
	}

	if c.HasTrial() {
		return ErrTrialExclusive
	}

	if plan.Feature == model.FeatureService {
		kept := c.items[:0]
		for _, p := range c.items {
			if p.Feature != model.FeatureService {
				kept = append(kept, p)
			}
		}
		c.items = kept
	}

	c.items = append(c.items, plan)
	return nil
}

func (c *Cart) remove(plan model.Plan) {
	kept := c.items[:0]
	for _, p := range c.items {
		if !p.Same(plan) {
			kept = append(kept, p)
		}
	}
	c.items = kept
}

// Total sums the effective prices (discounted price wins).
func (c *Cart) Total() float64 {
	var sum float64
	for _, p := range c.items {
		sum += p.Price()
	}
	return sum
}

// Sanitize re-validates the cart against account state: trial entries
// are dropped when the user is no longer eligible, and only the first
// SERVICE entry survives.
func (c *Cart) Sanitize(trialEligible bool) {
	kept := c.items[:0]
	serviceSeen := false
	for _, p := range c.items {
		if p.IsTrial && !trialEligible {
			continue
		}
		if p.Feature == model.FeatureService {
			if serviceSeen {
				continue
			}
			serviceSeen = true
		}
		kept = append(kept, p)
	}
	c.items = kept
}

// OrderItems projects the cart to the minimal plan references sent on
// order creation. Prices never leave the client.
func (c *Cart) OrderItems() []model.OrderItem {
	items := make([]model.OrderItem, 0, len(c.items))
	for _, p := range c.items {
		items = append(items, model.OrderItem{Model: p.Model, Feature: p.Feature})
	}
	return items
}

// Save snapshots the cart to the state store so it survives the
// redirect to an external OAuth provider and back. The snapshot expires
// with the OAuth-return window.
func (c *Cart) Save(ctx context.Context, st store.Store) error {
	payload, err := json.Marshal(c.items)
	if err != nil {
		return fmt.Errorf("failed to snapshot cart: %w", err)
	}
	return st.Set(ctx, store.KeyCartSnapshot, payload, store.OAuthReturnTTL)
}

// LoadCart restores a snapshot saved by Save. A missing or corrupt
// snapshot yields an empty cart, never an error to the user.
func LoadCart(ctx context.Context, st store.Store) *Cart {
	raw, err := st.Get(ctx, store.KeyCartSnapshot)
	if err != nil {
		return NewCart()
	}

	var items []model.Plan
	if err := json.Unmarshal(raw, &items); err != nil {
		return NewCart()
	}
	return &Cart{items: items}
}
