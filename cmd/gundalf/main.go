package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gundalf-client/internal/checkout"
	"gundalf-client/internal/client"
	"gundalf-client/internal/config"
	"gundalf-client/internal/linkrelay"
	"gundalf-client/internal/maintenance"
	"gundalf-client/internal/model"
	"gundalf-client/internal/session"
	"gundalf-client/internal/store"
	"gundalf-client/pkg/apierror"
	"gundalf-client/pkg/countdown"
	"gundalf-client/pkg/payaddr"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `Usage: gundalf <command> [flags]

Commands:
  register        Create a new account
  login           Log in and persist the session
  logout          Log out and clear the session
  me              Show the account profile
  plans           List subscription plans
  trial           Activate the free trial
  checkout        Buy plans with cryptocurrency
  link-discord    Connect a Discord account
  verify-discord  Verify the Discord server join
  watch           Keep the session alive and watch maintenance status
`

func main() {
	cfg := config.MustLoad()

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer app.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app.noteLocalStorage(ctx)

	// Resume a persisted session: refresh an expired token once, then
	// keep it fresh for the lifetime of the command.
	app.session.Init(ctx)

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the wired subsystems behind the CLI commands.
type app struct {
	cfg     *config.Config
	store   store.Store
	session *session.Manager
	api     *client.Client
}

// newApp wires the state store, session manager and API client.
func newApp(cfg *config.Config) (*app, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	// One cookie jar shared between the session manager and the API
	// client: the refresh cookie set on login must be visible to both.
	jar, err := cookiejar.New(nil)
	if err != nil {
		st.Close()
		return nil, err
	}
	baseClient := &http.Client{Jar: jar, Timeout: cfg.API.Timeout}

	sess := session.NewManager(session.Config{
		BaseURL:     cfg.API.BaseURL,
		HTTPClient:  baseClient,
		Store:       st,
		RefreshLead: cfg.Session.RefreshLead,
	})

	api := client.New(client.Config{
		BaseURL: cfg.API.BaseURL,
		Session: sess,
		Jar:     jar,
		Timeout: cfg.API.Timeout,
		OnSessionExpired: func() {
			fmt.Fprintln(os.Stderr, "Session expired. Please log in again with: gundalf login")
		},
	})

	return &app{cfg: cfg, store: st, session: sess, api: api}, nil
}

// noteLocalStorage prints the data notice on first run and records the
// acknowledgment so it never repeats.
func (a *app) noteLocalStorage(ctx context.Context) {
	if _, err := a.store.Get(ctx, store.KeyCookieConsent); err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Note: gundalf keeps your session and cart in its local state store (STATE_STORE). Delete the store to forget everything.")

	if err := a.store.Set(ctx, store.KeyCookieConsent, []byte("acknowledged"), 0); err != nil {
		log.Debug().Err(err).Msg("failed to record first-run notice")
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Debug().Err(err).Msg("store close failed")
	}
}

// openStore selects the state store backend from config.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.State.Type {
	case "redis":
		return store.NewRedisStore(store.RedisConfig{
			Addr:     cfg.State.RedisAddress(),
			Password: cfg.State.RedisPassword,
			DB:       cfg.State.RedisDB,
		})
	case "mysql":
		return store.NewMySQLStore(cfg.State.MySQLDSN())
	case "memory":
		return store.NewMemoryStore(), nil
	default: // sqlite
		return store.NewSQLiteStore(cfg.State.Path)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return a.cmdRegister(ctx, args)
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		return a.session.Logout(ctx)
	case "me":
		return a.cmdMe(ctx)
	case "plans":
		return a.cmdPlans(ctx)
	case "trial":
		return a.cmdTrial(ctx, args)
	case "checkout":
		return a.cmdCheckout(ctx, args)
	case "link-discord":
		return a.cmdLinkDiscord(ctx)
	case "verify-discord":
		return a.cmdVerifyDiscord(ctx)
	case "watch":
		return a.cmdWatch(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	if *email == "" || *username == "" || *password == "" {
		return fmt.Errorf("email, username and password are required")
	}

	if err := a.session.Register(ctx, *email, *password, *username); err != nil {
		return fmt.Errorf("%s", apierror.UserMessage(err, "Registration failed. Please try again."))
	}
	fmt.Println("Registered. Check your inbox for the verification mail.")
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	if *email == "" || *password == "" {
		return fmt.Errorf("email and password are required")
	}

	if err := a.session.Login(ctx, *email, *password); err != nil {
		if apierror.IsUnverifiedEmail(err) {
			return fmt.Errorf("Please confirm your email address.")
		}
		return fmt.Errorf("Login failed")
	}
	fmt.Println("Logged in.")
	return nil
}

func (a *app) cmdMe(ctx context.Context) error {
	user, err := a.api.Me(ctx, false)
	if err != nil {
		return err
	}

	fmt.Printf("%s <%s>\n", user.Username, user.Email)
	if sub := user.SubscriptionPrimary; sub != nil && sub.ExpiresAt != nil {
		fmt.Printf("Subscription: %s, expires %s\n", sub.Model, sub.ExpiresAt.Format(time.RFC1123))
	} else {
		fmt.Println("Subscription: none")
	}
	if user.DiscordLinked() {
		fmt.Println("Discord: linked")
	}
	return nil
}

func (a *app) cmdPlans(ctx context.Context) error {
	plans, err := a.api.Plans(ctx)
	if err != nil {
		return err
	}

	for _, p := range plans {
		price := fmt.Sprintf("%.2f EUR", p.Price())
		if p.DiscountedCostInEuro != nil {
			price += fmt.Sprintf(" (was %.2f)", p.CostInEuro)
		}
		trial := ""
		if p.IsTrial {
			trial = " [trial]"
		}
		fmt.Printf("%-20s %-8s %3dd  %s%s\n", p.Model, p.Feature, p.DurationInDays, price, trial)
	}
	return nil
}

func (a *app) cmdTrial(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trial", flag.ExitOnError)
	planModel := fs.String("plan", "TRIAL_1_DAY", "trial plan model")
	fs.Parse(args)

	if err := a.api.ActivateTrial(ctx, *planModel, model.FeatureService); err != nil {
		return err
	}
	fmt.Println("Trial activated.")
	return nil
}

// planList collects repeated -plan MODEL:FEATURE flags.
type planList []model.OrderItem

func (p *planList) String() string { return fmt.Sprint(*p) }

func (p *planList) Set(value string) error {
	m, f, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("expected MODEL:FEATURE, got %q", value)
	}
	*p = append(*p, model.OrderItem{Model: m, Feature: model.FeatureClass(strings.ToUpper(f))})
	return nil
}

func (a *app) cmdCheckout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	var wanted planList
	fs.Var(&wanted, "plan", "plan to buy as MODEL:FEATURE (repeatable)")
	currency := fs.String("currency", "", "settlement currency: btc, eth, ltc, sol, usdterc20, usdttrc20")
	acceptTOS := fs.Bool("accept-tos", false, "accept the Terms of Service")
	fs.Parse(args)

	cur := model.PayCurrency(strings.ToLower(*currency))
	if !cur.Valid() {
		return fmt.Errorf("unsupported currency %q", *currency)
	}

	catalog, err := a.api.Plans(ctx)
	if err != nil {
		return err
	}

	cart := checkout.NewCart()
	for _, want := range wanted {
		found := false
		for _, p := range catalog {
			if p.Model == want.Model && p.Feature == want.Feature {
				if err := cart.Toggle(p); err != nil {
					return err
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("plan %s:%s not in the catalog", want.Model, want.Feature)
		}
	}

	nav := &consoleNavigator{done: make(chan struct{})}
	orch := checkout.New(checkout.Config{
		Backend:           a.api,
		Navigator:         nav,
		PollInterval:      a.cfg.Checkout.PollInterval,
		CountdownInterval: a.cfg.Checkout.CountdownInterval,
		FallbackExpiry:    a.cfg.Checkout.FallbackExpiry,
	})
	defer orch.Close()

	if err := orch.Start(ctx, cart, *acceptTOS, cur); err != nil {
		return err
	}

	payment := orch.Payment()
	address := payaddr.Normalize(payment.PayAddress, string(cur))
	fmt.Printf("Order %s: send %s %s\n", orch.OrderID(), payaddr.FormatCoin8(payment.PayAmount), strings.ToUpper(string(cur)))
	fmt.Printf("Address: %s\n", address)
	if hint := payaddr.NetworkHint(string(cur)); hint != "" {
		fmt.Println(hint)
	}
	fmt.Printf("QR payload: %s\n", payaddr.PaymentURI(payment.PayAddress, string(cur), payment.PayAmount, true))

	// Live countdown until the payment settles or the user bails out.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Printf("\rExpires in %s  ", countdown.FormatHMS(int64(orch.Remaining()/time.Second)))
		case <-nav.done:
			fmt.Println()
			return nav.err
		case <-ctx.Done():
			fmt.Println()
			return ctx.Err()
		}
	}
}

// consoleNavigator is the CLI stand-in for the SPA's router redirect.
type consoleNavigator struct {
	done chan struct{}
	err  error
}

func (n *consoleNavigator) Success(orderID string) {
	fmt.Printf("\nPayment confirmed. Order %s is active.\n", orderID)
	close(n.done)
}

func (n *consoleNavigator) Failure(orderID string) {
	n.err = fmt.Errorf("payment for order %s failed or expired", orderID)
	close(n.done)
}

func (a *app) cmdLinkDiscord(ctx context.Context) error {
	relay := linkrelay.New(a.api, a.store, a.cfg.Link.ListenAddr)

	url, err := relay.Begin(ctx, checkout.NewCart())
	if err != nil {
		return err
	}
	fmt.Println("Open this URL in your browser to connect Discord:")
	fmt.Println(url)

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.Link.WaitLimit)
	defer cancel()

	res, err := relay.Await(waitCtx)
	if err != nil {
		return err
	}
	if res.ErrMessage != "" {
		return fmt.Errorf("%s", res.ErrMessage)
	}
	fmt.Println(res.Message)
	return nil
}

func (a *app) cmdVerifyDiscord(ctx context.Context) error {
	res, err := a.api.VerifyDiscordJoin(ctx)
	if err != nil {
		return fmt.Errorf("Verification failed. Try again.")
	}
	if !res.OK {
		if res.Reason == "NOT_IN_GUILD" {
			return fmt.Errorf("Please join our Discord first, then click Verify.")
		}
		return fmt.Errorf("Please connect your Discord account first.")
	}
	fmt.Println("Discord verified. You can activate the trial now.")
	return nil
}

func (a *app) cmdWatch(ctx context.Context) error {
	if !a.session.IsLoggedIn(ctx) {
		return fmt.Errorf("not logged in")
	}

	a.session.OnStatusChange(func(loggedIn bool) {
		if loggedIn {
			log.Info().Msg("session renewed")
		} else {
			log.Warn().Msg("session ended")
		}
	})
	a.session.ScheduleAutoRefresh()

	watcher := maintenance.NewWatcher(a.api, maintenance.DefaultCheckInterval)
	watcher.Start()
	defer watcher.Stop()

	log.Info().Msg("watching session and maintenance status, Ctrl-C to stop")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	return nil
}
