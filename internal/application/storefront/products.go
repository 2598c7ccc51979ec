package storefront

import (
	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/domain/catalog"
	"github.com/vechnost/storefront/internal/domain/fetch"
)

// ProductsView is the product grid: a category list and the product list
// filtered by category and search text.
type ProductsView struct {
	api        endpoints
	Categories *resource.Synchronizer
	Products   *resource.Synchronizer
}

func (s *Service) Products(scope *resource.Scope, category, q string) *ProductsView {
	return &ProductsView{
		api:        s.api,
		Categories: scope.Mount(string(catalog.ResourceCategories), s.api.categories(), fetch.RequestConfig{}),
		Products:   scope.Mount(string(catalog.ResourceProducts), s.api.products(category, q), fetch.RequestConfig{}),
	}
}

// Filter re-derives the product locator. Products are refetched only when
// the derived locator differs from the current one.
func (v *ProductsView) Filter(category, q string) bool {
	return v.Products.SetLocator(v.api.products(category, q))
}

// TopRankView is the best-selling ranking.
type TopRankView struct {
	Top *resource.Synchronizer
}

func (s *Service) TopRank(scope *resource.Scope) *TopRankView {
	return &TopRankView{
		Top: scope.Mount(string(catalog.ResourceTop), s.api.top(), fetch.RequestConfig{}),
	}
}

// Categories mounts the category list alone.
func (s *Service) Categories(scope *resource.Scope) *resource.Synchronizer {
	return scope.Mount(string(catalog.ResourceCategories), s.api.categories(), fetch.RequestConfig{})
}

// PaymentMethods mounts the payment method list alone.
func (s *Service) PaymentMethods(scope *resource.Scope) *resource.Synchronizer {
	return scope.Mount(string(catalog.ResourcePaymentMethods), s.api.paymentMethods(), fetch.RequestConfig{})
}
