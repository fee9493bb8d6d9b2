package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"gundalf-client/internal/model"
	"gundalf-client/pkg/countdown"

	"github.com/rs/zerolog/log"
)

// State is the orchestrator's position in the checkout flow.
type State string

const (
	StateIdle            State = "idle"
	StateCreatingOrder   State = "creating-order"
	StateCreatingPayment State = "creating-payment"
	StateAwaitingPayment State = "awaiting-payment"
	StateFinished        State = "finished"
	StateFailed          State = "failed"
	StateExpired         State = "expired"
)

// Terminal reports whether the state ends the flow.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed || s == StateExpired
}

// String representation (for logging)
func (s State) String() string { return string(s) }

// Local validation errors, caught before any network call.
var (
	ErrTermsNotAccepted = errors.New("Please accept the Terms of Service.")
	ErrEmptyCart        = errors.New("Your cart is empty.")
	ErrBusy             = errors.New("a checkout is already in progress")
)

// ErrPaymentStart is the generic failure surfaced when order or payment
// creation fails; no partial order detail leaks to the user.
var ErrPaymentStart = errors.New("Could not start the payment. Please try again.")

// Backend is the slice of the API client the orchestrator needs.
type Backend interface {
	CreateOrder(ctx context.Context, items []model.OrderItem) (string, error)
	CreatePayment(ctx context.Context, orderID string, currency model.PayCurrency) (*model.Payment, error)
	PaymentStatus(ctx context.Context, paymentID string) (*model.PaymentStatusResponse, error)
}

// Navigator receives the terminal redirect: the success or failure view
// carrying the order ID.
type Navigator interface {
	Success(orderID string)
	Failure(orderID string)
}

// Config tunes an orchestrator.
type Config struct {
	Backend   Backend
	Navigator Navigator

	// PollInterval between payment-status polls. Default 5s.
	PollInterval time.Duration
	// CountdownInterval between countdown ticks. Default 1s.
	CountdownInterval time.Duration
	// FallbackExpiry is assumed when the payment carries no expiry.
	// Default 20m.
	FallbackExpiry time.Duration
}

// Orchestrator sequences order creation, payment creation and payment
// status polling until a terminal state is reached.
type Orchestrator struct {
	backend   Backend
	navigator Navigator

	pollInterval      time.Duration
	countdownInterval time.Duration
	fallbackExpiry    time.Duration

	// now is swappable for tests.
	now func() time.Time

	mu        sync.Mutex
	state     State
	orderID   string
	payment   *model.Payment
	skew      time.Duration
	remaining time.Duration
	stopCh    chan struct{}
	stopOnce  *sync.Once
	done      chan struct{}
}

// New creates an idle orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.CountdownInterval <= 0 {
		cfg.CountdownInterval = time.Second
	}
	if cfg.FallbackExpiry <= 0 {
		cfg.FallbackExpiry = 20 * time.Minute
	}

	return &Orchestrator{
		backend:           cfg.Backend,
		navigator:         cfg.Navigator,
		pollInterval:      cfg.PollInterval,
		countdownInterval: cfg.CountdownInterval,
		fallbackExpiry:    cfg.FallbackExpiry,
		now:               time.Now,
		state:             StateIdle,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OrderID returns the captured order identifier, if any.
func (o *Orchestrator) OrderID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.orderID
}

// Payment returns a copy of the current payment record, if any.
func (o *Orchestrator) Payment() *model.Payment {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.payment == nil {
		return nil
	}
	p := *o.payment
	return &p
}

// Remaining returns the skew-corrected time left until payment expiry.
func (o *Orchestrator) Remaining() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remaining
}

// CountdownDisplay renders the remaining time as "HH:MM:SS".
func (o *Orchestrator) CountdownDisplay() string {
	return countdown.FormatHMS(int64(o.Remaining() / time.Second))
}

// Start validates the cart, creates order and payment, and enters the
// payment-watch loop. Validation failures leave the orchestrator idle
// and never hit the network.
func (o *Orchestrator) Start(ctx context.Context, cart *Cart, tosAccepted bool, currency model.PayCurrency) error {
	if !tosAccepted {
		return ErrTermsNotAccepted
	}
	if cart == nil || cart.Empty() {
		return ErrEmptyCart
	}

	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	o.state = StateCreatingOrder
	orderID := o.orderID
	o.mu.Unlock()

	// An order captured by an earlier attempt (e.g. a different
	// currency after a payment-create failure) is reused.
	if orderID == "" {
		id, err := o.backend.CreateOrder(ctx, cart.OrderItems())
		if err != nil {
			log.Warn().Str("component", "checkout").Err(err).Msg("order creation failed")
			o.setState(StateIdle)
			return ErrPaymentStart
		}
		orderID = id
		o.mu.Lock()
		o.orderID = id
		o.mu.Unlock()
	}

	o.setState(StateCreatingPayment)
	payment, err := o.backend.CreatePayment(ctx, orderID, currency)
	if err != nil {
		log.Warn().Str("component", "checkout").Err(err).Msg("payment creation failed")
		o.setState(StateIdle)
		return ErrPaymentStart
	}

	o.mu.Lock()
	o.payment = payment
	o.state = StateAwaitingPayment
	o.mu.Unlock()

	o.startWatching()
	return nil
}

// Resume re-enters the payment-watch loop for an existing payment,
// hydrating address, amount, expiry and order from a one-shot status
// fetch (the reload-the-payment-screen path). Like Start it only runs
// from idle, so a live watch loop is never orphaned.
func (o *Orchestrator) Resume(ctx context.Context, paymentID string) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	o.state = StateCreatingPayment
	o.mu.Unlock()

	status, err := o.backend.PaymentStatus(ctx, paymentID)
	if err != nil {
		o.setState(StateIdle)
		return err
	}

	o.mu.Lock()
	if status.ServerTime != nil {
		o.skew = status.ServerTime.Sub(o.now())
	}
	o.orderID = status.OrderID
	o.payment = &model.Payment{
		PaymentID:   model.FlexID(paymentID),
		OrderID:     status.OrderID,
		PayCurrency: status.PayCurrency,
		PayAddress:  status.PayAddress,
		PayAmount:   status.PayAmount,
		CreatedAt:   status.CreatedAt,
		ExpiresAt:   status.ExpiresAt,
	}
	o.state = StateAwaitingPayment
	o.mu.Unlock()

	o.startWatching()
	return nil
}

// Close tears the orchestrator down: both the poll and the countdown
// stop together so no leaked poll outlives the payment screen.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	stopOnce, stopCh := o.stopOnce, o.stopCh
	o.mu.Unlock()

	if stopOnce != nil {
		stopOnce.Do(func() { close(stopCh) })
	}
}

// Wait blocks until the watch loop exits (terminal state or Close).
// Returns immediately if no watch loop ran.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// startWatching launches the countdown and poll loop for the current
// payment.
func (o *Orchestrator) startWatching() {
	o.mu.Lock()
	o.stopCh = make(chan struct{})
	o.stopOnce = &sync.Once{}
	o.done = make(chan struct{})
	stopCh, done := o.stopCh, o.done

	expiry := o.now().Add(o.fallbackExpiry)
	if o.payment != nil && o.payment.ExpiresAt != nil {
		expiry = *o.payment.ExpiresAt
	}
	o.remaining = o.remainingUntilLocked(expiry)
	paymentID := ""
	if o.payment != nil {
		paymentID = o.payment.PaymentID.String()
	}
	o.mu.Unlock()

	go o.watch(paymentID, expiry, stopCh, done)
}

// remainingUntilLocked computes the clamped, skew-corrected remainder.
// Callers hold o.mu.
func (o *Orchestrator) remainingUntilLocked(expiry time.Time) time.Duration {
	r := expiry.Sub(o.now().Add(o.skew))
	if r < 0 {
		r = 0
	}
	return r
}

// watch runs the two timers of AwaitingPayment: the 1s countdown tick
// and the 5s status poll. It exits on a terminal status or Close.
func (o *Orchestrator) watch(paymentID string, expiry time.Time, stopCh chan struct{}, done chan struct{}) {
	defer close(done)

	countdownTicker := time.NewTicker(o.countdownInterval)
	defer countdownTicker.Stop()
	pollTicker := time.NewTicker(o.pollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-countdownTicker.C:
			o.mu.Lock()
			o.remaining = o.remainingUntilLocked(expiry)
			o.mu.Unlock()

		case <-pollTicker.C:
			terminal, newExpiry := o.poll(paymentID, expiry)
			if terminal {
				return
			}
			expiry = newExpiry

		case <-stopCh:
			return
		}
	}
}

// poll fetches the payment status once. Transient errors are swallowed
// and retried on the next tick, with no backoff. Returns whether a
// terminal state was reached, and the (possibly rotated) expiry.
func (o *Orchestrator) poll(paymentID string, expiry time.Time) (bool, time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), o.pollInterval)
	defer cancel()

	status, err := o.backend.PaymentStatus(ctx, paymentID)
	if err != nil {
		log.Debug().Str("component", "checkout").Err(err).Msg("status poll failed, retrying")
		return false, expiry
	}

	o.mu.Lock()
	if status.ServerTime != nil {
		o.skew = status.ServerTime.Sub(o.now())
	}
	// The backend may rotate address, amount and expiry mid-payment.
	if o.payment != nil {
		if status.PayAddress != "" {
			o.payment.PayAddress = status.PayAddress
		}
		if status.PayAmount != 0 {
			o.payment.PayAmount = status.PayAmount
		}
		if status.ExpiresAt != nil {
			o.payment.ExpiresAt = status.ExpiresAt
			expiry = *status.ExpiresAt
		}
	}
	orderID := o.orderID
	if status.OrderID != "" {
		orderID = status.OrderID
		o.orderID = orderID
	}
	o.mu.Unlock()

	switch status.Status {
	case model.PaymentFinished:
		o.finish(StateFinished)
		if o.navigator != nil {
			o.navigator.Success(orderID)
		}
		return true, expiry
	case model.PaymentFailed:
		o.finish(StateFailed)
		if o.navigator != nil {
			o.navigator.Failure(orderID)
		}
		return true, expiry
	case model.PaymentExpired:
		o.finish(StateExpired)
		if o.navigator != nil {
			o.navigator.Failure(orderID)
		}
		return true, expiry
	default:
		// pending or anything unknown: keep polling.
		return false, expiry
	}
}

// finish records the terminal state and cancels both timers together.
func (o *Orchestrator) finish(s State) {
	o.mu.Lock()
	o.state = s
	stopOnce, stopCh := o.stopOnce, o.stopCh
	o.mu.Unlock()

	log.Info().Str("component", "checkout").Str("state", s.String()).Msg("payment reached terminal state")
	if stopOnce != nil {
		stopOnce.Do(func() { close(stopCh) })
	}
}
