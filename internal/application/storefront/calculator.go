package storefront

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/vechnost/storefront/internal/domain/fetch"
	"github.com/vechnost/storefront/internal/domain/pricing"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

const calcEndpoint = "tools.calc"

// Calculation compares the local quote with the backend's.
// Remote is nil when the backend could not be asked; RemoteError says why.
type Calculation struct {
	Input       pricing.Input  `json:"input"`
	Local       pricing.Quote  `json:"local"`
	Remote      *pricing.Quote `json:"remote,omitempty"`
	RemoteError string         `json:"remote_error,omitempty"`
	Parity      bool           `json:"parity"`
}

// Calculate normalises in, computes its quote locally and asks the backend's
// calculator for the same input. A remote failure is reported, not returned.
func (s *Service) Calculate(ctx context.Context, in pricing.RawInput) Calculation {
	norm := pricing.Normalize(in)
	out := Calculation{Input: norm, Local: norm.Quote()}

	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", "pricing.calculate"))

	raw, err := s.send(ctx, calcEndpoint, s.api.calc(), http.MethodPost, norm)
	if err != nil {
		out.RemoteError = fetch.Describe(err)
		logger.Warn("pricing_remote_failed", observability.Err(err))
		return out
	}

	res := gjson.ParseBytes(raw)
	if !res.Get("total").Exists() {
		out.RemoteError = "empty calculator response"
		logger.Warn("pricing_remote_failed", observability.F("reason", "missing_total"))
		return out
	}
	remote := pricing.Quote{
		Subtotal: res.Get("base").Float(),
		Total:    res.Get("total").Float(),
	}
	out.Remote = &remote
	out.Parity = pricing.Same(out.Local, remote)
	if !out.Parity {
		s.parityMismatch.Add(1)
		logger.Warn("pricing_parity_mismatch",
			observability.F("local_base", out.Local.Subtotal),
			observability.F("local_total", out.Local.Total),
			observability.F("remote_base", remote.Subtotal),
			observability.F("remote_total", remote.Total),
		)
	}
	return out
}
