package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gundalf-client/internal/model"
	"gundalf-client/internal/session"
	"gundalf-client/internal/store"
	"gundalf-client/pkg/apierror"

	"github.com/stretchr/testify/require"
)

// newTestClient wires a Client against a handler, with a valid token in
// the store so no refresh path runs.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	st := store.NewMemoryStore()
	token := mintToken(t, time.Now().Add(time.Hour))
	require.NoError(t, st.Set(context.Background(), store.KeyAccessToken, []byte(token), 0))

	sess := session.NewManager(session.Config{BaseURL: srv.URL, HTTPClient: srv.Client(), Store: st})
	return New(Config{BaseURL: srv.URL, Session: sess})
}

func TestPlansSendsOptionalAuth(t *testing.T) {
	var gotOptional string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOptional = r.Header.Get(OptionalAuthHeader)
		io.WriteString(w, `[{"model":"PRO_30_DAYS","feature":"SERVICE","costInEuro":29.99,"durationInDays":30}]`)
	}))

	plans, err := c.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Equal(t, "PRO_30_DAYS", plans[0].Model)
	require.Equal(t, model.FeatureService, plans[0].Feature)
	require.NotEmpty(t, gotOptional, "the plan catalog must work logged-out")
}

func TestCreateOrderSendsPlanReferencesOnly(t *testing.T) {
	var gotBody map[string]interface{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"orderId":"ord-42"}`)
	}))

	orderID, err := c.CreateOrder(context.Background(), []model.OrderItem{
		{Model: "PRO_30_DAYS", Feature: model.FeatureService},
	})
	require.NoError(t, err)
	require.Equal(t, "ord-42", orderID)

	cart, ok := gotBody["cart"].([]interface{})
	require.True(t, ok)
	item, ok := cart[0].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "PRO_30_DAYS", item["model"])
	require.NotContains(t, item, "costInEuro", "prices never leave the client")
}

func TestCreatePaymentBackfillsOrderAndCurrency(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/now/create", r.URL.Path)
		// Provider payload without orderId, numeric payment id.
		io.WriteString(w, `{"paymentId":4505123456,"payAddress":"bc1qexample","payAmount":0.0042}`)
	}))

	payment, err := c.CreatePayment(context.Background(), "ord-42", model.PayBTC)
	require.NoError(t, err)
	require.Equal(t, "4505123456", payment.PaymentID.String())
	require.Equal(t, "ord-42", payment.OrderID)
	require.Equal(t, model.PayBTC, payment.PayCurrency)
	require.Equal(t, 0.0042, payment.PayAmount)
}

func TestPaymentStatusDecoding(t *testing.T) {
	serverTime := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/now/status/4505123456", r.URL.Path)
		json.NewEncoder(w).Encode(model.PaymentStatusResponse{
			Status:     model.PaymentPending,
			OrderID:    "ord-42",
			ServerTime: &serverTime,
		})
	}))

	status, err := c.PaymentStatus(context.Background(), "4505123456")
	require.NoError(t, err)
	require.Equal(t, model.PaymentPending, status.Status)
	require.Equal(t, "ord-42", status.OrderID)
	require.NotNil(t, status.ServerTime)
	require.True(t, serverTime.Equal(*status.ServerTime))
}

func TestErrorEnvelopeSurfacesAsAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":{"message":"Order already paid","statusCode":409}}`)
	}))

	_, err := c.CreateOrder(context.Background(), []model.OrderItem{{Model: "PRO_30_DAYS", Feature: model.FeatureService}})
	require.Error(t, err)

	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
	require.Equal(t, "Order already paid", apiErr.Message)
}

func TestVerifyDiscordJoin(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/discord/verify-join", r.URL.Path)
		io.WriteString(w, `{"ok":false,"reason":"NOT_IN_GUILD"}`)
	}))

	res, err := c.VerifyDiscordJoin(context.Background())
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "NOT_IN_GUILD", res.Reason)
}
