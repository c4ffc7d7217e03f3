// Package functions holds the fixed catalog of typed, read-only data access
// operations the resolver may select from.
package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc executes one data access function for a user.
type HandlerFunc func(ctx context.Context, userID string, args map[string]any) (json.RawMessage, error)

// Normalizer validates an argument record and fills defaults. It must be
// side-effect free so resolved invocations stay canonical.
type Normalizer func(args map[string]any) (map[string]any, error)

// Definition describes one catalog function to the resolver.
type Definition struct {
	Name        string
	Description string
	// Parameters is the JSON schema handed to the language model.
	Parameters map[string]any
}

type entry struct {
	def       Definition
	handler   HandlerFunc
	normalize Normalizer
}

// Catalog stores the function definitions and their executors.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]entry)}
}

// Register adds a function to the catalog.
func (c *Catalog) Register(def Definition, normalize Normalizer, handler HandlerFunc) error {
	if def.Name == "" {
		return fmt.Errorf("function name is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[def.Name]; exists {
		return fmt.Errorf("function already registered: %s", def.Name)
	}
	c.entries[def.Name] = entry{def: def, handler: handler, normalize: normalize}
	c.order = append(c.order, def.Name)
	return nil
}

// MustRegister adds a function or panics.
func (c *Catalog) MustRegister(def Definition, normalize Normalizer, handler HandlerFunc) {
	if err := c.Register(def, normalize, handler); err != nil {
		panic(err)
	}
}

// Has reports whether a function exists.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

// Definitions returns the catalog in registration order.
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]Definition, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.entries[name].def)
	}
	return defs
}

// Normalize validates args for a function and fills defaults.
func (c *Catalog) Normalize(name string, args map[string]any) (map[string]any, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", name)
	}
	if e.normalize == nil {
		return args, nil
	}
	return e.normalize(args)
}

// Execute runs the named function.
func (c *Catalog) Execute(ctx context.Context, userID, name string, args map[string]any) (json.RawMessage, error) {
	if name == "" {
		return nil, fmt.Errorf("function name is required")
	}
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no function registered for %s", name)
	}
	return e.handler(ctx, userID, args)
}
