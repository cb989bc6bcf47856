// Package processor wraps the external payment processor behind a small
// gateway interface so the settlement services can be tested against fakes
// and the Stripe dependency stays in one place.
package processor

import "context"

// IntentParams describes a payment intent to create.
type IntentParams struct {
	// Amount in cents.
	Amount int64
	// CustomerID is the processor-side payer identity.
	CustomerID string
	// ManualCapture authorizes and holds the charge (escrow) instead of
	// capturing immediately.
	ManualCapture bool
	// Metadata is attached to the intent for reconciliation.
	Metadata map[string]string
}

// Intent is the subset of a processor payment intent the services need.
type Intent struct {
	ID           string
	ClientSecret string
	// Status is the processor-reported state, e.g. "requires_capture".
	Status string
	Amount int64
}

// StatusRequiresCapture is the intent state in which a held charge can be
// captured. Anything else makes a capture request invalid.
const StatusRequiresCapture = "requires_capture"

// TransferParams describes a payout transfer to a connected account.
type TransferParams struct {
	// Amount in cents.
	Amount int64
	// DestinationAccountID is the recipient's connected account.
	DestinationAccountID string
	Description          string
	Metadata             map[string]string
}

// Transfer is the result of a payout transfer.
type Transfer struct {
	ID     string
	Amount int64
}

// AccountStatus reports a connected account's enablement.
type AccountStatus struct {
	AccountID        string
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Gateway is the payment processor surface used by the settlement services.
// Implementations must honor the context deadline on every call.
type Gateway interface {
	// CreateCustomer creates a payer identity and returns its id.
	CreateCustomer(ctx context.Context, email, name string) (string, error)

	// CreateIntent creates a payment intent (held when ManualCapture).
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)

	// GetIntent fetches the current state of an intent.
	GetIntent(ctx context.Context, intentID string) (*Intent, error)

	// CaptureIntent captures a held charge. Callers check the intent state
	// first; the processor rejects captures outside requires_capture.
	CaptureIntent(ctx context.Context, intentID string) (*Intent, error)

	// CreateTransfer moves funds to a connected account.
	CreateTransfer(ctx context.Context, params TransferParams) (*Transfer, error)

	// CreateAccount creates an Express connected account for a payee.
	CreateAccount(ctx context.Context, email string) (string, error)

	// GetAccount reports a connected account's enablement flags.
	GetAccount(ctx context.Context, accountID string) (*AccountStatus, error)

	// OnboardingLink returns a URL where the payee finishes onboarding.
	OnboardingLink(ctx context.Context, accountID string) (string, error)

	// DashboardLink returns a login URL for the payee's Express dashboard.
	DashboardLink(ctx context.Context, accountID string) (string, error)
}
