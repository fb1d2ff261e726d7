package client

import (
	"context"
	"errors"
)

// ErrNoGateway is returned by the development gateway: no processor is
// configured, so nothing can be transferred.
var ErrNoGateway = errors.New("no payout processor configured")

type TransferRequest struct {
	DestinationAccount string
	AmountCents        int64
	Currency           string
	IdempotencyKey     string // payout row id
	TransferGroup      string // order or subscription id
	Metadata           map[string]string
}

// PayoutGateway moves vendor money through a payment processor.
type PayoutGateway interface {
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	PayoutsEnabled(ctx context.Context, accountID string) (bool, error)
}

type noopGateway struct{}

// NewNoopGateway is used when PAYOUT_PROVIDER=none. Every vendor is treated as
// payout-enabled and transfers fail with ErrNoGateway.
func NewNoopGateway() PayoutGateway {
	return noopGateway{}
}

func (noopGateway) Transfer(context.Context, TransferRequest) (string, error) {
	return "", ErrNoGateway
}

func (noopGateway) PayoutsEnabled(context.Context, string) (bool, error) {
	return true, nil
}
