// Package cart implements the shopping cart: ephemeral, single-owner state
// mutated only through its defined operations. Adding an item that is
// already present increments its quantity; quantities never drop to zero or
// below, an item reaching zero is removed instead.
package cart

import (
	"sync"

	"github.com/throwingafit/storefront/internal/analytics"
)

// Item is one cart line.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"` // cents
	Quantity    int    `json:"quantity"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// Cart holds the current items. The zero value is not usable; construct
// with New.
type Cart struct {
	mu       sync.Mutex
	items    []Item
	reporter analytics.Reporter
}

// New returns an empty cart. A nil reporter defaults to the no-op reporter.
func New(reporter analytics.Reporter) *Cart {
	if reporter == nil {
		reporter = analytics.Nop{}
	}
	return &Cart{reporter: reporter}
}

// Add puts an item in the cart with quantity 1, or increments the quantity
// of the existing line with the same id.
func (c *Cart) Add(item Item) {
	c.reporter.AddToCart(item.ID, item.Name, item.Price)

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i].Quantity++
			return
		}
	}

	item.Quantity = 1
	c.items = append(c.items, item)
}

// UpdateQuantity sets the quantity for an item. A quantity of zero or less
// removes the line entirely. Unknown ids are ignored.
func (c *Cart) UpdateQuantity(id string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		c.removeLocked(id)
		return
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Quantity = quantity
			return
		}
	}
}

// Remove deletes the line with the given id.
func (c *Cart) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
}

func (c *Cart) removeLocked(id string) {
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Clear removes every item.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the current lines.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Contains reports whether an item with the given id is in the cart.
func (c *Cart) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// TotalItems returns the sum of all line quantities.
func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the cart total in cents.
func (c *Cart) TotalPrice() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, item := range c.items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}
