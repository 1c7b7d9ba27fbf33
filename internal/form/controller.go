// Package form implements the schema-driven form controller: it owns the
// editable subset of a FormSchema and drives the edit / validate / submit /
// reset lifecycle. Validation itself lives in the schema package; the
// controller decides when to run it and where the results go.
package form

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/throwingafit/storefront/internal/schema"
)

// SubmitFunc receives the full editable value map once full-form validation
// has passed. An error returned here is an external-call failure, distinct
// from a validation failure; the controller logs it and returns the form to
// an editable state.
type SubmitFunc func(ctx context.Context, values map[string]any) error

// ChangeFunc is notified after every field edit with the full current value
// map and error map. The caller decides how to react; there is no built-in
// debounce.
type ChangeFunc func(values map[string]any, errors map[string]string)

// Config carries per-instance presentation and behavior settings. It is
// constructed once per controller and never shared mutable state.
type Config struct {
	// SubmitLabel and ResetLabel override the default control captions.
	SubmitLabel string
	ResetLabel  string

	// Logger receives submit-handler failures. Defaults to slog.Default.
	Logger *slog.Logger
}

// ValidationError is returned by Submit when full-form validation fails.
// Submission was not attempted; Fields holds one message per failing field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form validation failed for %d field(s)", len(e.Fields))
}

// Controller owns form state for one schema instance. All methods are safe
// for use from a single owner; a mutex guards against accidental concurrent
// submits from retried HTTP requests.
type Controller struct {
	mu         sync.Mutex
	schema     *schema.FormSchema
	editable   []string
	values     map[string]any
	errors     map[string]string
	submitting bool
	cfg        Config
	onChange   ChangeFunc
}

// NewController builds a controller for the editable subset of s. Initial
// values are taken per field from initial, falling back to the field's
// declared default, falling back to the empty string. Read-only fields are
// excluded from the editable set entirely.
func NewController(s *schema.FormSchema, cfg Config, initial map[string]any) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller{
		schema:   s,
		editable: s.EditableFieldNames(),
		errors:   make(map[string]string),
		cfg:      cfg,
	}
	c.values = c.defaults(initial)
	return c
}

// defaults computes the per-field starting values. When initial is nil the
// result is exactly the schema's declared defaults.
func (c *Controller) defaults(initial map[string]any) map[string]any {
	values := make(map[string]any, len(c.editable))
	for _, name := range c.editable {
		field := c.schema.Properties[name]
		switch {
		case initial != nil && initial[name] != nil:
			values[name] = initial[name]
		case field.Default != nil:
			values[name] = field.Default
		default:
			values[name] = ""
		}
	}
	return values
}

// OnChange registers the change notification callback.
func (c *Controller) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetField updates one field's value, re-validates only that field, updates
// its error entry (clearing it on success), and notifies the change
// callback with the full current state.
func (c *Controller) SetField(name string, value any) {
	c.mu.Lock()

	if !c.isEditable(name) {
		c.mu.Unlock()
		return
	}

	c.values[name] = value

	field := c.schema.Properties[name]
	if msg := schema.ValidateField(value, field, name, c.schema); msg != "" {
		c.errors[name] = msg
	} else {
		delete(c.errors, name)
	}

	fn := c.onChange
	values := c.snapshotValues()
	errors := c.snapshotErrors()
	c.mu.Unlock()

	if fn != nil {
		fn(values, errors)
	}
}

// Submit runs full-form validation and, if clean, invokes submit with the
// full value map. A *ValidationError means submission was blocked and all
// field errors are surfaced; any other error came from the submit handler
// and leaves the form editable with its field errors unchanged.
func (c *Controller) Submit(ctx context.Context, submit SubmitFunc) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return fmt.Errorf("submission already in progress")
	}

	allErrors := c.validateAllLocked()
	c.errors = allErrors
	if len(allErrors) > 0 {
		c.mu.Unlock()
		return &ValidationError{Fields: allErrors}
	}

	c.submitting = true
	values := c.snapshotValues()
	c.mu.Unlock()

	err := submit(ctx, values)

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()

	if err != nil {
		c.cfg.Logger.Error("form submission failed", "schema", c.schema.Name, "error", err)
		return fmt.Errorf("submit form: %w", err)
	}
	return nil
}

// Reset restores every editable field to its schema default, ignoring any
// caller-supplied initial values, and clears all errors.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = c.defaults(nil)
	c.errors = make(map[string]string)
}

// Values returns a copy of the current value map.
func (c *Controller) Values() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotValues()
}

// Errors returns a copy of the current error map.
func (c *Controller) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotErrors()
}

// Submitting reports whether a submit handler call is in flight. While true
// the owning view disables all fields and the submit control.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// validateAllLocked validates the editable fields only; read-only fields
// are outside the controller's scope.
func (c *Controller) validateAllLocked() map[string]string {
	errors := make(map[string]string)
	for _, name := range c.editable {
		field := c.schema.Properties[name]
		if msg := schema.ValidateField(c.values[name], field, name, c.schema); msg != "" {
			errors[name] = msg
		}
	}
	return errors
}

func (c *Controller) isEditable(name string) bool {
	for _, n := range c.editable {
		if n == name {
			return true
		}
	}
	return false
}

func (c *Controller) snapshotValues() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *Controller) snapshotErrors() map[string]string {
	out := make(map[string]string, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}
