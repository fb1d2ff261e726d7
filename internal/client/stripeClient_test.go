package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func TestWrapStripeErrorKeepsChain(t *testing.T) {
	t.Parallel()

	apiErr := &stripe.Error{Code: stripe.ErrorCode("account_invalid"), Msg: "No such destination"}
	err := wrapStripeError("stripe transfer", apiErr)

	var got *stripe.Error
	require.True(t, errors.As(err, &got))
	assert.Same(t, apiErr, got)
	assert.Contains(t, err.Error(), "stripe transfer: account_invalid: No such destination")

	err = wrapStripeError("stripe get account", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "stripe get account: context deadline exceeded", err.Error())
}
