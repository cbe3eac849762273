package handlers

import (
	"errors"
	"fmt"

	"github.com/charlesng35/notifystream/internal/notifications"
	"github.com/charlesng35/notifystream/internal/realtime"
	appErrors "github.com/charlesng35/notifystream/pkg/errors"
)

// translateError maps domain failures onto API errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var validationErr *notifications.ValidationError
	if errors.As(err, &validationErr) {
		return appErrors.ErrValidation.
			WithMessage(fmt.Sprintf("%s %s", validationErr.Field, validationErr.Reason)).
			WithInternal(err)
	}

	var storeErr *notifications.StoreError
	if errors.As(err, &storeErr) {
		if storeErr.MissingReference {
			return appErrors.ErrUnknownRecipient.WithInternal(err)
		}
		return appErrors.ErrStorage.WithInternal(err)
	}

	var rejected *realtime.AuthRejected
	if errors.As(err, &rejected) {
		return appErrors.ErrUnauthorized.WithInternal(err)
	}

	return err
}
