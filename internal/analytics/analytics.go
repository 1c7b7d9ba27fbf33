// Package analytics defines the event reporting interface injected into
// storefront components. Environments without a pixel integration use Nop;
// the production wiring forwards events to the configured sink.
package analytics

import "log/slog"

// Reporter receives storefront events. Implementations must be safe for
// concurrent use and must never block the caller on delivery.
type Reporter interface {
	AddToCart(productID, name string, price int64)
	BeginCheckout(totalCents int64, itemCount int)
	FormSubmitted(formID string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) AddToCart(string, string, int64) {}
func (Nop) BeginCheckout(int64, int)        {}
func (Nop) FormSubmitted(string)            {}

// Logger reports events as structured debug logs. Used when no external
// pixel is configured but events should still be observable.
type Logger struct {
	Log *slog.Logger
}

func (l Logger) AddToCart(productID, name string, price int64) {
	l.logger().Debug("analytics: add_to_cart", "product_id", productID, "name", name, "price", price)
}

func (l Logger) BeginCheckout(totalCents int64, itemCount int) {
	l.logger().Debug("analytics: begin_checkout", "total_cents", totalCents, "items", itemCount)
}

func (l Logger) FormSubmitted(formID string) {
	l.logger().Debug("analytics: form_submitted", "form_id", formID)
}

func (l Logger) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default()
}
