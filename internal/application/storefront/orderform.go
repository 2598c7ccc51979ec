package storefront

import (
	"context"
	"errors"

	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/domain/catalog"
	"github.com/vechnost/storefront/internal/domain/fetch"
	domorder "github.com/vechnost/storefront/internal/domain/order"
)

var ErrOrdersUnavailable = errors.New("storefront: order submission is not configured")

// OrderForm backs the top-up form: payment methods and products to choose
// from, and submission of the filled-in form.
type OrderForm struct {
	svc            *Service
	PaymentMethods *resource.Synchronizer
	Products       *resource.Synchronizer
}

func (s *Service) OrderForm(scope *resource.Scope) *OrderForm {
	return &OrderForm{
		svc:            s,
		PaymentMethods: scope.Mount(string(catalog.ResourcePaymentMethods), s.api.paymentMethods(), fetch.RequestConfig{}),
		Products:       scope.Mount(string(catalog.ResourceProducts), s.api.products("", ""), fetch.RequestConfig{}),
	}
}

// DefaultProductID is the first listed product once products are ready, "" before.
func (f *OrderForm) DefaultProductID() string {
	return domorder.FirstProductID(f.Products.State().Payload())
}

// Draft resolves form against whatever products payload is currently known.
// A blank product selection falls back to DefaultProductID.
func (f *OrderForm) Draft(form domorder.Form) domorder.Draft {
	if form.ProductID == "" {
		form.ProductID = f.DefaultProductID()
	}
	return domorder.Resolve(form, f.Products.State().Payload())
}

// Submit resolves and submits form once. Errors are returned as produced
// by the use case; a *fetch.HTTPError carries the backend's error payload.
func (f *OrderForm) Submit(ctx context.Context, form domorder.Form) (*domorder.Receipt, error) {
	if f.svc.orders == nil {
		return nil, ErrOrdersUnavailable
	}
	return f.svc.orders.Execute(ctx, f.Draft(form))
}
