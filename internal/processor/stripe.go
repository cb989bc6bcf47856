package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
)

// StripeGateway implements Gateway against the Stripe API. All calls run
// through one circuit breaker: after repeated consecutive failures the
// breaker opens and calls fail fast until Stripe recovers, instead of tying
// up request handlers on a degraded processor.
type StripeGateway struct {
	client  *stripe.Client
	breaker *gobreaker.CircuitBreaker[any]

	// Connect onboarding redirect targets.
	returnURL  string
	refreshURL string
}

// Ensure StripeGateway implements Gateway
var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway builds a gateway with the given API key and Connect
// onboarding redirect URLs.
func NewStripeGateway(apiKey, returnURL, refreshURL string) *StripeGateway {
	settings := gobreaker.Settings{
		Name: "stripe",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &StripeGateway{
		client:     stripe.NewClient(apiKey),
		breaker:    gobreaker.NewCircuitBreaker[any](settings),
		returnURL:  returnURL,
		refreshURL: refreshURL,
	}
}

// do runs a Stripe call through the breaker.
func (g *StripeGateway) do(op string, fn func() (any, error)) (any, error) {
	v, err := g.breaker.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("stripe %s: %w", op, err)
	}
	return v, nil
}

// CreateCustomer creates a Stripe customer for a payer.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	v, err := g.do("create customer", func() (any, error) {
		return g.client.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
			Email: stripe.String(email),
			Name:  stripe.String(name),
		})
	})
	if err != nil {
		return "", err
	}
	return v.(*stripe.Customer).ID, nil
}

// CreateIntent creates a payment intent, held when ManualCapture is set.
func (g *StripeGateway) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	createParams := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(params.Amount),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Customer: stripe.String(params.CustomerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.ManualCapture {
		createParams.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	for k, val := range params.Metadata {
		createParams.AddMetadata(k, val)
	}

	v, err := g.do("create payment intent", func() (any, error) {
		return g.client.V1PaymentIntents.Create(ctx, createParams)
	})
	if err != nil {
		return nil, err
	}
	return intentFromStripe(v.(*stripe.PaymentIntent)), nil
}

// GetIntent fetches the current state of a payment intent.
func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	v, err := g.do("retrieve payment intent", func() (any, error) {
		return g.client.V1PaymentIntents.Retrieve(ctx, intentID, nil)
	})
	if err != nil {
		return nil, err
	}
	return intentFromStripe(v.(*stripe.PaymentIntent)), nil
}

// CaptureIntent captures a held charge.
func (g *StripeGateway) CaptureIntent(ctx context.Context, intentID string) (*Intent, error) {
	v, err := g.do("capture payment intent", func() (any, error) {
		return g.client.V1PaymentIntents.Capture(ctx, intentID, &stripe.PaymentIntentCaptureParams{})
	})
	if err != nil {
		return nil, err
	}
	return intentFromStripe(v.(*stripe.PaymentIntent)), nil
}

// CreateTransfer moves funds to a connected account.
func (g *StripeGateway) CreateTransfer(ctx context.Context, params TransferParams) (*Transfer, error) {
	createParams := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(params.Amount),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(params.DestinationAccountID),
		Description: stripe.String(params.Description),
	}
	for k, val := range params.Metadata {
		createParams.AddMetadata(k, val)
	}

	v, err := g.do("create transfer", func() (any, error) {
		return g.client.V1Transfers.Create(ctx, createParams)
	})
	if err != nil {
		return nil, err
	}
	t := v.(*stripe.Transfer)
	return &Transfer{ID: t.ID, Amount: t.Amount}, nil
}

// CreateAccount creates an Express connected account with the transfers
// capability requested.
func (g *StripeGateway) CreateAccount(ctx context.Context, email string) (string, error) {
	v, err := g.do("create account", func() (any, error) {
		return g.client.V1Accounts.Create(ctx, &stripe.AccountCreateParams{
			Type:  stripe.String(string(stripe.AccountTypeExpress)),
			Email: stripe.String(email),
			Capabilities: &stripe.AccountCreateCapabilitiesParams{
				Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
					Requested: stripe.Bool(true),
				},
			},
		})
	})
	if err != nil {
		return "", err
	}
	return v.(*stripe.Account).ID, nil
}

// GetAccount reports the connected account's enablement flags.
func (g *StripeGateway) GetAccount(ctx context.Context, accountID string) (*AccountStatus, error) {
	v, err := g.do("retrieve account", func() (any, error) {
		return g.client.V1Accounts.GetByID(ctx, accountID, nil)
	})
	if err != nil {
		return nil, err
	}
	acct := v.(*stripe.Account)
	return &AccountStatus{
		AccountID:        acct.ID,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}, nil
}

// OnboardingLink creates an account link for Connect onboarding.
func (g *StripeGateway) OnboardingLink(ctx context.Context, accountID string) (string, error) {
	v, err := g.do("create account link", func() (any, error) {
		return g.client.V1AccountLinks.Create(ctx, &stripe.AccountLinkCreateParams{
			Account:    stripe.String(accountID),
			ReturnURL:  stripe.String(g.returnURL),
			RefreshURL: stripe.String(g.refreshURL),
			Type:       stripe.String("account_onboarding"),
		})
	})
	if err != nil {
		return "", err
	}
	return v.(*stripe.AccountLink).URL, nil
}

// DashboardLink creates a login link for the Express dashboard.
func (g *StripeGateway) DashboardLink(ctx context.Context, accountID string) (string, error) {
	v, err := g.do("create login link", func() (any, error) {
		return g.client.V1LoginLinks.Create(ctx, &stripe.LoginLinkCreateParams{
			Account: stripe.String(accountID),
		})
	})
	if err != nil {
		return "", err
	}
	return v.(*stripe.LoginLink).URL, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
	}
}
