package model

import (
	"encoding/json"
	"time"
)

// FlexID decodes identifiers the backend sends as either JSON strings
// or numbers (the payment provider does both).
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// PayCurrency is a settlement currency accepted at checkout.
type PayCurrency string

const (
	PayBTC       PayCurrency = "btc"
	PayETH       PayCurrency = "eth"
	PayLTC       PayCurrency = "ltc"
	PaySOL       PayCurrency = "sol"
	PayUSDTERC20 PayCurrency = "usdterc20"
	PayUSDTTRC20 PayCurrency = "usdttrc20"
)

// PayCurrencies lists the supported settlement currencies in menu order.
var PayCurrencies = []struct {
	Key   PayCurrency
	Label string
}{
	{PayBTC, "Bitcoin (BTC)"},
	{PayETH, "Ethereum (ETH)"},
	{PayUSDTERC20, "USDT (ERC-20)"},
	{PayUSDTTRC20, "USDT (TRC-20)"},
	{PayLTC, "Litecoin (LTC)"},
	{PaySOL, "Solana (SOL)"},
}

// Valid reports whether the currency key is one of the supported set.
func (c PayCurrency) Valid() bool {
	switch c {
	case PayBTC, PayETH, PayLTC, PaySOL, PayUSDTERC20, PayUSDTTRC20:
		return true
	}
	return false
}

// PaymentStatus is the backend-reported state of a payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentFinished PaymentStatus = "finished"
	PaymentFailed   PaymentStatus = "failed"
	PaymentExpired  PaymentStatus = "expired"
)

// Terminal reports whether the status ends the payment flow.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentFinished || s == PaymentFailed || s == PaymentExpired
}

// OrderItem is the minimal plan reference sent on order creation.
// Prices are never sent; the backend recomputes them authoritatively.
type OrderItem struct {
	Model   string       `json:"model"`
	Feature FeatureClass `json:"feature"`
}

// Order is the client-side shadow of a created order.
type Order struct {
	OrderID string `json:"orderId"`
}

// Payment is the client-side shadow of a created payment, as returned by
// POST /payments/now/create and updated by status polls.
type Payment struct {
	PaymentID     FlexID      `json:"paymentId"`
	OrderID       string      `json:"orderId"`
	PayCurrency   PayCurrency `json:"payCurrency"`
	PayAddress    string      `json:"payAddress,omitempty"`
	PayAmount     float64     `json:"payAmount,omitempty"`
	PriceAmount   float64     `json:"priceAmount,omitempty"`
	PriceCurrency string      `json:"priceCurrency,omitempty"`
	CreatedAt     *time.Time  `json:"createdAt,omitempty"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
}

// PaymentStatusResponse is the poll response from
// GET /payments/now/status/:paymentId. Address, amount and expiry are
// optional: the backend may rotate them mid-payment.
type PaymentStatusResponse struct {
	Status      PaymentStatus `json:"status"`
	OrderID     string        `json:"orderId"`
	PayCurrency PayCurrency   `json:"payCurrency,omitempty"`
	PayAddress  string        `json:"payAddress,omitempty"`
	PayAmount   float64       `json:"payAmount,omitempty"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
	ServerTime  *time.Time    `json:"serverTime,omitempty"`
}
