package model

// FeatureClass classifies a subscription plan entry.
type FeatureClass string

const (
	// FeatureService is a primary subscription; a cart holds at most one.
	FeatureService FeatureClass = "SERVICE"
	// FeatureAddon augments a service plan; addons accumulate freely.
	FeatureAddon FeatureClass = "ADDON"
)

// Plan describes a purchasable subscription plan as returned by
// GET /subscriptions/plans.
type Plan struct {
	Model          string       `json:"model"`
	Label          string       `json:"label"`
	Description    string       `json:"description,omitempty"`
	Feature        FeatureClass `json:"feature"`
	CostInEuro     float64      `json:"costInEuro"`
	DurationInDays int          `json:"durationInDays"`
	Highlight      bool         `json:"highlight,omitempty"`
	IsTrial        bool         `json:"isTrial,omitempty"`

	// Optional promo fields; discounted price wins over the list price.
	DiscountedCostInEuro *float64 `json:"discountedCostInEuro,omitempty"`
	DiscountPercent      *float64 `json:"discountPercent,omitempty"`
	PromoLabel           string   `json:"promoLabel,omitempty"`
	OriginalCostInEuro   *float64 `json:"originalCostInEuro,omitempty"`
}

// Price returns the effective price, preferring the discounted price
// when present.
func (p Plan) Price() float64 {
	if p.DiscountedCostInEuro != nil {
		return *p.DiscountedCostInEuro
	}
	return p.CostInEuro
}

// Same reports whether two plans identify the same catalog entry.
// Identity is (feature, model), mirroring the backend's plan key.
func (p Plan) Same(other Plan) bool {
	return p.Feature == other.Feature && p.Model == other.Model
}
