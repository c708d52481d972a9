package models

import (
	"errors"
	"fmt"

	apperrors "surveyflow/pkg/errors"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return errors.Is(apperrors.ErrValidation, target)
}

func ValidateRawMessage(msg *RawMessage) error {
	if msg == nil {
		return &ValidationError{
			Field:   "message",
			Message: "message cannot be nil",
		}
	}

	if msg.Topic == "" {
		return &ValidationError{
			Field:   "topic",
			Message: "message topic is required",
		}
	}

	if msg.Fields == nil {
		return &ValidationError{
			Field:   "fields",
			Message: "message payload must be a JSON object",
		}
	}

	return nil
}
