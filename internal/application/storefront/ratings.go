package storefront

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/domain/catalog"
	"github.com/vechnost/storefront/internal/domain/fetch"
	"github.com/vechnost/storefront/internal/domain/pricing"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

// DefaultStars is submitted when the star input is unusable.
const DefaultStars = 5

// RatingsView lists the ratings of one product and accepts new ones.
type RatingsView struct {
	svc       *Service
	productID string
	Ratings   *resource.Synchronizer
}

// Ratings mounts the rating list of productID.
func (s *Service) Ratings(scope *resource.Scope, productID string) *RatingsView {
	return &RatingsView{
		svc:       s,
		productID: productID,
		Ratings:   scope.Mount(string(catalog.ResourceRatings), s.api.productRatings(productID), fetch.RequestConfig{}),
	}
}

// Select switches the view to another product.
func (v *RatingsView) Select(productID string) bool {
	v.productID = productID
	return v.Ratings.SetLocator(v.svc.api.productRatings(productID))
}

// Submit posts a rating for the selected product and then reloads the list.
// The list is reloaded even when the post failed; other live views of
// ratings are left to the refresher.
func (v *RatingsView) Submit(ctx context.Context, stars, comment string) error {
	err := v.svc.PostRating(withOrigin(ctx, v.Ratings), v.productID, stars, comment)
	v.Ratings.Refetch()
	return err
}

// PostRating posts a rating without any view attached.
func (s *Service) PostRating(ctx context.Context, productID, stars, comment string) error {
	if strings.TrimSpace(productID) == "" {
		return ErrBlankField
	}
	rating := catalog.Rating{ProductID: productID, Stars: Stars(stars), Comment: comment}
	if _, err := s.send(ctx, string(catalog.ResourceRatings), s.api.ratings(), http.MethodPost, rating); err != nil {
		logctx.FromOr(ctx, s.log).Warn("rating_submit_failed",
			observability.F("product_id", productID),
			observability.Err(err),
		)
		return err
	}
	s.changed(ctx, catalog.ResourceRatings, "create")
	return nil
}

// Stars parses a star count. Anything outside 1..5 counts as DefaultStars;
// fractions are truncated.
func Stars(s string) int {
	v, ok := pricing.ParseNumber(s)
	if !ok {
		return DefaultStars
	}
	n := int(math.Trunc(v))
	if n < 1 || n > 5 {
		return DefaultStars
	}
	return n
}
