// Package application holds the storefront's use cases and views.
package application

import "context"

// UseCase is one request-scoped operation with a command and a result.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
