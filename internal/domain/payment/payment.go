package payment

import (
	"context"

	"github.com/go-faster/errors"
)

// MinAmount is the gateway's minimum chargeable amount in minor currency
// units (paise).
const MinAmount = 100

var (
	// ErrInvalidAmount is returned before any network call when the requested
	// amount is not a positive integer of at least MinAmount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrGatewayUnavailable is returned when the gateway call fails for any
	// reason: network error, rejected amount, auth failure. It is never
	// retried automatically; the end user may retry the whole request.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Intent is the gateway's pre-authorization object, handed to the client so
// payment can complete out-of-band. It is transient: nothing references it
// again after the response is written.
type Intent struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Gateway creates payment intents against the external provider. The
// capture-on-create mode is requested as part of intent creation; no
// confirmation or capture step is invoked afterwards.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error)
}

// Service validates intent requests before delegating to the gateway.
type Service struct {
	gateway Gateway
}

// NewService creates a payment Service using the given gateway adapter.
func NewService(gateway Gateway) *Service {
	return &Service{gateway: gateway}
}

// CreateIntent checks the amount locally, then asks the gateway for an
// intent. Gateway failures surface as ErrGatewayUnavailable.
func (s *Service) CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error) {
	if amount < MinAmount {
		return nil, ErrInvalidAmount
	}

	intent, err := s.gateway.CreateIntent(ctx, amount, currency)
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, errors.Wrap(ErrGatewayUnavailable, err.Error())
	}
	return intent, nil
}
