package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlanPrice(t *testing.T) {
	plan := Plan{Model: "PRO_30_DAYS", Feature: FeatureService, CostInEuro: 29.99}
	require.Equal(t, 29.99, plan.Price())

	discounted := 19.99
	plan.DiscountedCostInEuro = &discounted
	require.Equal(t, 19.99, plan.Price())
}

func TestPlanSame(t *testing.T) {
	a := Plan{Model: "PRO_30_DAYS", Feature: FeatureService, CostInEuro: 29.99}
	b := Plan{Model: "PRO_30_DAYS", Feature: FeatureService, CostInEuro: 9.99}
	c := Plan{Model: "PRO_30_DAYS", Feature: FeatureAddon}

	require.True(t, a.Same(b), "identity is feature and model, not price")
	require.False(t, a.Same(c))
}

func TestFlexIDUnmarshal(t *testing.T) {
	var p Payment

	require.NoError(t, json.Unmarshal([]byte(`{"paymentId":"abc-123"}`), &p))
	require.Equal(t, "abc-123", p.PaymentID.String())

	require.NoError(t, json.Unmarshal([]byte(`{"paymentId":4505123456}`), &p))
	require.Equal(t, "4505123456", p.PaymentID.String())

	require.Error(t, json.Unmarshal([]byte(`{"paymentId":true}`), &p))
}

func TestPayCurrencyValid(t *testing.T) {
	for _, entry := range PayCurrencies {
		require.True(t, entry.Key.Valid(), entry.Key)
	}
	require.False(t, PayCurrency("doge").Valid())
	require.False(t, PayCurrency("").Valid())
}

func TestPaymentStatusTerminal(t *testing.T) {
	require.False(t, PaymentPending.Terminal())
	require.True(t, PaymentFinished.Terminal())
	require.True(t, PaymentFailed.Terminal())
	require.True(t, PaymentExpired.Terminal())
	require.False(t, PaymentStatus("confirming").Terminal())
}

func TestUserTrialEligibility(t *testing.T) {
	var nobody *User
	require.True(t, nobody.TrialEligible())
	require.False(t, nobody.UsedTrial())
	require.False(t, nobody.HasActiveSubscription())

	fresh := &User{Email: "a@b.c"}
	require.True(t, fresh.TrialEligible())

	later := time.Now().Add(24 * time.Hour)
	subscribed := &User{SubscriptionPrimary: &Subscription{Model: "PRO_30_DAYS", ExpiresAt: &later}}
	require.True(t, subscribed.HasActiveSubscription())
	require.False(t, subscribed.TrialEligible())

	trialByFlag := &User{SubscriptionHistory: []Subscription{{Model: "PRO_30_DAYS", IsTrial: true}}}
	require.True(t, trialByFlag.UsedTrial())
	require.False(t, trialByFlag.TrialEligible())

	trialByModel := &User{SubscriptionHistory: []Subscription{{Model: "TRIAL_1_DAY"}}}
	require.True(t, trialByModel.UsedTrial())
}

func TestUserDiscordState(t *testing.T) {
	u := &User{}
	require.False(t, u.DiscordLinked())
	require.False(t, u.DiscordVerified())

	u.DiscordID = "123456789"
	require.True(t, u.DiscordLinked())

	now := time.Now()
	u.DiscordJoinVerifiedAt = &now
	require.True(t, u.DiscordVerified())
}
