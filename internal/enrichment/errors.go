package enrichment

import (
	"errors"
	"fmt"

	apperrors "surveyflow/pkg/errors"
)

// ErrInvalidIdentifier fails the whole message: the Id field is absent or not an integer.
var ErrInvalidIdentifier = errors.New("invalid message identifier")

func invalidIdentifier(value interface{}, reason string) error {
	return apperrors.Wrap(fmt.Errorf("%w: %s (got %T %v)", ErrInvalidIdentifier, reason, value, value), apperrors.ErrValidation)
}
