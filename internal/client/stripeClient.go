package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	stripeclient "github.com/stripe/stripe-go/v76/client"
)

type stripeGatewayImpl struct {
	sc *stripeclient.API
}

func NewStripeGateway(secretKey string) PayoutGateway {
	sc := &stripeclient.API{}
	sc.Init(secretKey, nil)

	return &stripeGatewayImpl{
		sc: sc,
	}
}

// Transfer creates a Connect transfer to the vendor's connected account. The
// payout id doubles as the idempotency key so a replayed request cannot move
// money twice.
func (g *stripeGatewayImpl) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.DestinationAccount),
		TransferGroup: stripe.String(req.TransferGroup),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	tr, err := g.sc.Transfers.New(params)
	if err != nil {
		return "", wrapStripeError("stripe transfer", err)
	}

	return tr.ID, nil
}

func (g *stripeGatewayImpl) PayoutsEnabled(ctx context.Context, accountID string) (bool, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := g.sc.Accounts.GetByID(accountID, params)
	if err != nil {
		return false, wrapStripeError("stripe get account", err)
	}

	return acct.PayoutsEnabled, nil
}

// wrapStripeError keeps the original error in the chain and surfaces the
// processor's code and message when there is one.
func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if stripeErr.Code != "" {
		return fmt.Errorf("%s: %s: %s: %w", op, stripeErr.Code, stripeErr.Msg, err)
	}
	return fmt.Errorf("%s: %s: %w", op, stripeErr.Msg, err)
}
