package model

import "time"

// Subscription is one entry of a user's subscription state.
type Subscription struct {
	Model     string     `json:"model"`
	IsTrial   bool       `json:"isTrial,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// User is the profile returned by GET /users/me.
type User struct {
	Email    string `json:"email"`
	Username string `json:"username"`

	SubscriptionPrimary *Subscription  `json:"subscriptionPrimary,omitempty"`
	SubscriptionHistory []Subscription `json:"subscriptionHistory,omitempty"`

	DiscordID             string     `json:"discordId,omitempty"`
	DiscordJoinVerifiedAt *time.Time `json:"discordJoinVerifiedAt,omitempty"`
}

// HasActiveSubscription reports whether the primary subscription exists
// and has not expired.
func (u *User) HasActiveSubscription() bool {
	if u == nil || u.SubscriptionPrimary == nil || u.SubscriptionPrimary.ExpiresAt == nil {
		return false
	}
	return u.SubscriptionPrimary.ExpiresAt.After(time.Now())
}

// UsedTrial reports whether any historical subscription was a trial.
func (u *User) UsedTrial() bool {
	if u == nil {
		return false
	}
	for _, s := range u.SubscriptionHistory {
		if s.IsTrial || s.Model == "TRIAL_1_DAY" {
			return true
		}
	}
	return false
}

// TrialEligible reports whether the trial banner/offer applies: no
// active service subscription and no trial used before.
func (u *User) TrialEligible() bool {
	if u == nil {
		// Logged-out users stay eligible until proven otherwise.
		return true
	}
	return u.SubscriptionPrimary == nil && !u.UsedTrial()
}

// DiscordLinked reports whether a Discord account is connected.
func (u *User) DiscordLinked() bool {
	return u != nil && u.DiscordID != ""
}

// DiscordVerified reports whether the Discord guild join was verified.
func (u *User) DiscordVerified() bool {
	return u != nil && u.DiscordJoinVerifiedAt != nil
}
