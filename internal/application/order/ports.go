package order

import (
	"context"
	"encoding/json"

	"github.com/vechnost/storefront/internal/domain/fetch"
)

// Sender performs a one-shot mutation against the backend.
type Sender interface {
	Send(ctx context.Context, req fetch.Request) (json.RawMessage, error)
}
