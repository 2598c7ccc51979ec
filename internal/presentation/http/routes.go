package httppresentation

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/application/storefront"
	"github.com/vechnost/storefront/internal/domain/catalog"
	"github.com/vechnost/storefront/internal/domain/fetch"
	domorder "github.com/vechnost/storefront/internal/domain/order"
	"github.com/vechnost/storefront/internal/domain/pricing"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

// formValue accepts a JSON string, number or null the way a form field
// would hold it: as raw text.
type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = formValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*v = formValue(n.String())
	}
	return nil
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	h.scoped(r, func(scope *resource.Scope) {
		st := settle(r.Context(), h.svc.Categories(scope))[0]
		writeJSON(w, stateStatus(st), st)
	})
}

func (h *Handler) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	h.scoped(r, func(scope *resource.Scope) {
		st := settle(r.Context(), h.svc.PaymentMethods(scope))[0]
		writeJSON(w, stateStatus(st), st)
	})
}

type rankRow struct {
	Rank   int    `json:"rank"`
	Label  string `json:"label"`
	Orders int    `json:"orders"`
}

type topResponse struct {
	Top     fetch.State `json:"top"`
	Ranking []rankRow   `json:"ranking,omitempty"`
}

func (h *Handler) handleTop(w http.ResponseWriter, r *http.Request) {
	h.scoped(r, func(scope *resource.Scope) {
		st := settle(r.Context(), h.svc.TopRank(scope).Top)[0]
		writeJSON(w, stateStatus(st), topResponse{Top: st, Ranking: ranking(st)})
	})
}

// ranking numbers the best sellers from 1; it is empty unless st holds a list.
func ranking(st fetch.State) []rankRow {
	if !st.IsReady() {
		return nil
	}
	var entries []catalog.TopEntry
	if err := json.Unmarshal(st.Payload(), &entries); err != nil {
		return nil
	}
	rows := make([]rankRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, rankRow{Rank: i + 1, Label: e.Label(), Orders: e.Orders})
	}
	return rows
}

type recentOrderRow struct {
	catalog.RecentOrder
	TotalLabel string `json:"total_label"`
}

type overviewSummary struct {
	catalog.Overview
	RecentOrders []recentOrderRow `json:"recent_orders"`
}

type overviewResponse struct {
	Overview fetch.State      `json:"overview"`
	Summary  *overviewSummary `json:"summary,omitempty"`
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	h.scoped(r, func(scope *resource.Scope) {
		st := settle(r.Context(), h.svc.Overview(scope))[0]
		writeJSON(w, stateStatus(st), overviewResponse{Overview: st, Summary: summarize(st)})
	})
}

func summarize(st fetch.State) *overviewSummary {
	if !st.IsReady() {
		return nil
	}
	var o catalog.Overview
	if err := json.Unmarshal(st.Payload(), &o); err != nil {
		return nil
	}
	out := &overviewSummary{Overview: o, RecentOrders: make([]recentOrderRow, 0, len(o.RecentOrders))}
	for _, ro := range o.RecentOrders {
		out.RecentOrders = append(out.RecentOrders, recentOrderRow{RecentOrder: ro, TotalLabel: Rupiah(ro.TotalPrice)})
	}
	return out
}

func (h *Handler) handleRatings(w http.ResponseWriter, r *http.Request) {
	h.scoped(r, func(scope *resource.Scope) {
		st := settle(r.Context(), h.svc.Ratings(scope, chi.URLParam(r, "productID")).Ratings)[0]
		writeJSON(w, stateStatus(st), st)
	})
}

type productsResponse struct {
	Categories fetch.State       `json:"categories"`
	Products   fetch.State       `json:"products"`
	Prices     map[string]string `json:"prices,omitempty"`
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.scoped(r, func(scope *resource.Scope) {
		v := h.svc.Products(scope, q.Get("category"), q.Get("q"))
		states := settle(r.Context(), v.Categories, v.Products)
		resp := productsResponse{Categories: states[0], Products: states[1], Prices: priceLabels(states[1].Payload())}
		writeJSON(w, stateStatus(states[1]), resp)
	})
}

// priceLabels maps product id to its display price.
func priceLabels(products json.RawMessage) map[string]string {
	if !gjson.ValidBytes(products) {
		return nil
	}
	labels := make(map[string]string)
	gjson.ParseBytes(products).ForEach(func(_, p gjson.Result) bool {
		if id := p.Get("id").String(); id != "" {
			labels[id] = Rupiah(p.Get("price").Float())
		}
		return true
	})
	return labels
}

type postRatingRequest struct {
	ProductID string    `json:"product_id"`
	Stars     formValue `json:"stars"`
	Comment   string    `json:"comment"`
}

func (h *Handler) handlePostRating(w http.ResponseWriter, r *http.Request) {
	var req postRatingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	h.scoped(r, func(scope *resource.Scope) {
		v := h.svc.Ratings(scope, req.ProductID)
		if err := v.Submit(r.Context(), string(req.Stars), req.Comment); err != nil {
			writeDomainError(w, err)
			return
		}
		st := settle(r.Context(), v.Ratings)[0]
		writeJSON(w, http.StatusCreated, map[string]fetch.State{"ratings": st})
	})
}

type quoteRequest struct {
	Price      formValue `json:"price"`
	Amount     formValue `json:"amount"`
	FeePercent formValue `json:"fee_percent"`
	FeeFlat    formValue `json:"fee_flat"`
}

type quoteResponse struct {
	storefront.Calculation
	SubtotalLabel string `json:"subtotal_label"`
	TotalLabel    string `json:"total_label"`
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	calc := h.svc.Calculate(r.Context(), pricing.RawInput{
		Price:      string(req.Price),
		Quantity:   string(req.Amount),
		FeePercent: string(req.FeePercent),
		FeeFlat:    string(req.FeeFlat),
	})
	writeJSON(w, http.StatusOK, quoteResponse{
		Calculation:   calc,
		SubtotalLabel: Rupiah(calc.Local.Subtotal),
		TotalLabel:    Rupiah(calc.Local.Total),
	})
}

func (h *Handler) handleCheckID(w http.ResponseWriter, r *http.Request) {
	var req storefront.CheckIDRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.svc.CheckID(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createOrderRequest struct {
	ProductID         string    `json:"product_id"`
	Amount            formValue `json:"amount"`
	TargetID          string    `json:"target_id"`
	PaymentMethodCode string    `json:"payment_method_code"`
}

type createOrderResponse struct {
	*domorder.Receipt
	TotalLabel string `json:"total_label"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	h.scoped(r, func(scope *resource.Scope) {
		form := h.svc.OrderForm(scope)
		// The provider is read from the product list; an unavailable list
		// only means the default provider is used.
		settle(r.Context(), form.Products)

		receipt, err := form.Submit(r.Context(), domorder.Form{
			ProductID:         req.ProductID,
			Quantity:          string(req.Amount),
			TargetID:          req.TargetID,
			PaymentMethodCode: req.PaymentMethodCode,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createOrderResponse{Receipt: receipt, TotalLabel: Rupiah(receipt.Total)})
	})
}

type authRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	var (
		reply storefront.Reply
		err   error
	)
	switch chi.URLParam(r, "action") {
	case "login":
		reply, err = h.svc.Login(r.Context(), req.Email, req.Password)
	case "register":
		reply, err = h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	default:
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	logctx.FromOr(r.Context(), h.log).Debug("auth_relayed", observability.F("backend_status", statusText(reply.StatusCode)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.StatusCode)
	if len(reply.Payload) == 0 {
		_, _ = w.Write([]byte("null"))
		return
	}
	_, _ = w.Write(reply.Payload)
}

type adminCreateRequest struct {
	Name    string    `json:"name"`
	Title   string    `json:"title"`
	Price   formValue `json:"price"`
	Code    string    `json:"code"`
	Gateway string    `json:"gateway"`
}

func (h *Handler) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	res := catalog.Resource(chi.URLParam(r, "resource"))
	var req adminCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	var err error
	switch res {
	case catalog.ResourceCategories:
		err = h.svc.AddCategory(r.Context(), storefront.NewCategory{Name: req.Name})
	case catalog.ResourceProducts:
		err = h.svc.AddProduct(r.Context(), storefront.NewProduct{Title: req.Title, Price: string(req.Price)})
	case catalog.ResourcePaymentMethods:
		err = h.svc.AddPaymentMethod(r.Context(), storefront.NewPaymentMethod{Name: req.Name, Code: req.Code, Gateway: req.Gateway})
	default:
		err = storefront.ErrUnknownResource
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"resource": string(res), "action": "create"})
}

func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	res := catalog.Resource(chi.URLParam(r, "resource"))
	if err := h.svc.Delete(r.Context(), res, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
