package broker

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

// ErrNoPrice is returned when no price is known for a symbol.
var ErrNoPrice = errors.New("no price available")

// APIError is a non-2xx response from the broker API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("alpaca API error (status %d)", e.Status)
	}
	return fmt.Sprintf("alpaca API error (status %d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the broker API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// OrderError is a failed order placement. It is recorded on the evaluation,
// never retried.
type OrderError struct {
	Symbol string
	Side   decision.Action
	Qty    int
	Err    error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("%s %d %s: %v", e.Side, e.Qty, e.Symbol, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}
