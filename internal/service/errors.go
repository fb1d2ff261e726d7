package service

import (
	"errors"
	"fmt"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/repository"

	"gorm.io/gorm"
)

// Actor is the authenticated caller. VendorProfileID is only set on vendor
// routes.
type Actor struct {
	UserID          string
	VendorProfileID string
}

// handoffError translates state machine and repository errors into coded
// application errors.
func handoffError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, handoff.ErrAlreadyConfirmed):
		return apperr.ErrAlreadyConfirmed.Wrap(err)
	case errors.Is(err, handoff.ErrWindowExpired):
		return apperr.ErrWindowExpired.Wrap(err)
	case errors.Is(err, handoff.ErrBuyerNotAcknowledged):
		return apperr.ErrBuyerNotAcknowledged.Wrap(err)
	case errors.Is(err, handoff.ErrInvalidTransition):
		return apperr.ErrInvalidTransition.Wrap(err)
	case errors.Is(err, handoff.ErrRescheduleDateMissing),
		errors.Is(err, handoff.ErrRescheduleDateInPast),
		errors.Is(err, handoff.ErrUnknownAction):
		return apperr.ErrInvalidInput.WithMessage(err.Error())
	case errors.Is(err, repository.ErrStaleHandoff):
		return apperr.ErrConcurrentUpdate.Wrap(err)
	}
	return err
}

func lookupError(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrItemNotFound.Wrap(err)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
