package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/throwingafit/storefront/internal/auth"
	"github.com/throwingafit/storefront/internal/cart"
	"github.com/throwingafit/storefront/internal/shopping"
)

type checkoutRequest struct {
	Products      []checkoutLine `json:"products"`
	SuccessRouter string         `json:"successRouter"`
	CancelRouter  string         `json:"cancelRouter"`
}

type checkoutLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// handleCreateCheckoutSession opens a payment session. The requested lines
// are folded through a cart so duplicate product ids merge and non-positive
// quantities drop before reaching the payment provider.
func (s *Server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Products) == 0 {
		s.respondErrorWith(w, r, http.StatusBadRequest,
			UserMessage{Message: "No products provided", Code: "VAL002"},
			fmt.Errorf("checkout with no products"))
		return
	}

	order := cart.New(nil)
	for _, line := range req.Products {
		for i := 0; i < line.Quantity; i++ {
			order.Add(cart.Item{ID: line.ProductID})
		}
	}
	products := shopping.ProductsFromCart(order.Items())
	if len(products) == 0 {
		s.respondErrorWith(w, r, http.StatusBadRequest,
			UserMessage{Message: "No purchasable products in the order", Code: "VAL002"},
			fmt.Errorf("checkout with only zero-quantity lines"))
		return
	}

	// Checkout works for guests; a session only pre-fills the email.
	customerEmail := ""
	if user, err := s.deps.Sessions.UserFromRequest(r); err == nil {
		customerEmail = user.Email
	} else if !errors.Is(err, auth.ErrNoSession) {
		s.log.Warn("session lookup failed during checkout", "error", err)
	}

	session, err := s.deps.Shopping.CreateCheckoutSession(r.Context(), products, customerEmail, req.SuccessRouter, req.CancelRouter)
	if err != nil {
		var upstream *shopping.UpstreamError
		if errors.As(err, &upstream) && upstream.Status < 500 {
			// Pass the provider's own message and code through.
			s.respondErrorWith(w, r, http.StatusBadRequest,
				map[string]string{"message": upstream.Message, "code": upstream.Code}, err)
			return
		}
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleProducts serves the active product catalog.
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Shopping.Products(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if products == nil {
		products = []shopping.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// handlePurchaseDetail resolves what a completed checkout session bought.
func (s *Server) handlePurchaseDetail(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		s.respondErrorWith(w, r, http.StatusBadRequest,
			UserMessage{Message: "No sessionId provided", Code: "VAL002"},
			fmt.Errorf("purchase detail without sessionId"))
		return
	}

	detail, err := s.deps.Shopping.PurchaseDetail(r.Context(), sessionID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
