package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "surveyflow/pkg/errors"
	"surveyflow/pkg/models"
)

// ErrMalformedMessage marks a delivery whose payload is not a JSON object.
// It fails only that message; the connection stays usable.
var ErrMalformedMessage = errors.New("malformed message")

type Connector interface {
	Connect(ctx context.Context) (Connection, error)
}

// Connection yields deliveries forever; NextMessage blocks until one arrives.
type Connection interface {
	NextMessage(ctx context.Context) (models.RawMessage, error)
	Close() error
}

// ConnectionError is returned once the connect retry budget is exhausted.
type ConnectionError struct {
	Brokers  []string
	Topic    string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to kafka brokers [%s] for topic %q after %d attempts: %v",
		strings.Join(e.Brokers, ","), e.Topic, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return errors.Is(apperrors.ErrUnavailable, target)
}
