package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/domain/catalog"
	"github.com/vechnost/storefront/internal/domain/fetch"
	"github.com/vechnost/storefront/internal/domain/pricing"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

var ErrUnknownResource = errors.New("storefront: resource cannot be administered")

// AdminPanel is the back-office console: the three editable collections
// plus the monitor overview.
type AdminPanel struct {
	svc            *Service
	Categories     *resource.Synchronizer
	Products       *resource.Synchronizer
	PaymentMethods *resource.Synchronizer
	Overview       *resource.Synchronizer
}

func (s *Service) Admin(scope *resource.Scope) *AdminPanel {
	return &AdminPanel{
		svc:            s,
		Categories:     s.Categories(scope),
		Products:       scope.Mount(string(catalog.ResourceProducts), s.api.products("", ""), fetch.RequestConfig{}),
		PaymentMethods: s.PaymentMethods(scope),
		Overview:       s.Overview(scope),
	}
}

// Overview mounts the admin monitor summary alone.
func (s *Service) Overview(scope *resource.Scope) *resource.Synchronizer {
	return scope.Mount(string(catalog.ResourceOverview), s.api.overview(), fetch.RequestConfig{})
}

// NewCategory is the category form. Slug is derived from Name.
type NewCategory struct {
	Name string `json:"name"`
}

// NewProduct is the product form. Price is raw input; unusable prices become 0.
type NewProduct struct {
	Title string `json:"title"`
	Price string `json:"price"`
}

// NewPaymentMethod is the payment method form.
type NewPaymentMethod struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Gateway string `json:"gateway"`
}

// AddCategory creates a category and reloads the panel's category list.
func (p *AdminPanel) AddCategory(ctx context.Context, c NewCategory) error {
	return p.reload(p.svc.AddCategory(withOrigin(ctx, p.Categories), c), p.Categories)
}

func (p *AdminPanel) AddProduct(ctx context.Context, np NewProduct) error {
	return p.reload(p.svc.AddProduct(withOrigin(ctx, p.Products), np), p.Products)
}

func (p *AdminPanel) AddPaymentMethod(ctx context.Context, m NewPaymentMethod) error {
	return p.reload(p.svc.AddPaymentMethod(withOrigin(ctx, p.PaymentMethods), m), p.PaymentMethods)
}

// Delete removes id from r and reloads the matching list.
func (p *AdminPanel) Delete(ctx context.Context, r catalog.Resource, id string) error {
	sy := p.list(r)
	err := p.svc.Delete(withOrigin(ctx, sy), r, id)
	if sy == nil {
		return err
	}
	return p.reload(err, sy)
}

func (p *AdminPanel) list(r catalog.Resource) *resource.Synchronizer {
	switch r {
	case catalog.ResourceCategories:
		return p.Categories
	case catalog.ResourceProducts:
		return p.Products
	case catalog.ResourcePaymentMethods:
		return p.PaymentMethods
	}
	return nil
}

// reload refetches sy after a mutation attempt, whatever its outcome.
// Rejected input never reached the backend, so nothing is reloaded for it.
// The change event names sy as its origin, so the refresher skips it.
func (p *AdminPanel) reload(err error, sy *resource.Synchronizer) error {
	if errors.Is(err, ErrBlankField) || errors.Is(err, ErrUnknownResource) {
		return err
	}
	sy.Refetch()
	return err
}

// AddCategory creates a category. A blank name is rejected without a request.
func (s *Service) AddCategory(ctx context.Context, c NewCategory) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name", ErrBlankField)
	}
	body := catalog.Category{Name: c.Name, Slug: catalog.Slugify(c.Name)}
	return s.mutate(ctx, catalog.ResourceCategories, "create", http.MethodPost, s.api.admin(catalog.ResourceCategories), body)
}

// AddProduct creates an active game top-up product.
func (s *Service) AddProduct(ctx context.Context, np NewProduct) error {
	if strings.TrimSpace(np.Title) == "" {
		return fmt.Errorf("%w: title", ErrBlankField)
	}
	body := catalog.Product{
		Title:    np.Title,
		Price:    pricing.Normalize(pricing.RawInput{Price: np.Price}).Price,
		Type:     catalog.ProductTypeGameTopup,
		IsActive: true,
	}
	return s.mutate(ctx, catalog.ResourceProducts, "create", http.MethodPost, s.api.admin(catalog.ResourceProducts), body)
}

// AddPaymentMethod creates an active payment method.
func (s *Service) AddPaymentMethod(ctx context.Context, m NewPaymentMethod) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name", ErrBlankField)
	}
	body := catalog.PaymentMethod{Name: m.Name, Code: m.Code, Gateway: m.Gateway, IsActive: true}
	return s.mutate(ctx, catalog.ResourcePaymentMethods, "create", http.MethodPost, s.api.admin(catalog.ResourcePaymentMethods), body)
}

// Delete removes id from one of the editable collections.
func (s *Service) Delete(ctx context.Context, r catalog.Resource, id string) error {
	switch r {
	case catalog.ResourceCategories, catalog.ResourceProducts, catalog.ResourcePaymentMethods:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownResource, r)
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id", ErrBlankField)
	}
	return s.mutate(ctx, r, "delete", http.MethodDelete, s.api.admin(r, id), nil)
}

// mutate sends one admin mutation and, on success, announces the change so
// every live view of r refetches.
func (s *Service) mutate(ctx context.Context, r catalog.Resource, action, method string, loc fetch.Locator, body any) (err error) {
	useCase := "admin." + string(r) + "." + action
	ctx, span := s.tel.Tracer().Start(ctx, "UC.Admin",
		attribute.String("use_case", useCase),
		attribute.String("resource", string(r)),
	)
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCase))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, fetch.Kind(err))
			logger.Warn("admin_mutation_failed", observability.Err(err))
		} else {
			span.SetStatus(codes.Ok, "OK")
			logger.Info("admin_mutation_done")
		}
		span.End()
	}()

	if _, err = s.send(ctx, "admin."+string(r), loc, method, body); err != nil {
		return err
	}
	s.changed(ctx, r, action)
	return nil
}
