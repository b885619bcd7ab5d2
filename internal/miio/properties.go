package miio

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// propertyChunkSize caps the number of names per get_prop request. Older
// firmware rejects longer lists.
const propertyChunkSize = 15

// DeclareProperty adds a name to the direct-method snapshot. The value is
// unknown (absent) until the first refresh.
func (c *Client) DeclareProperty(name string) {
	if name == "" {
		return
	}
	c.propMu.Lock()
	defer c.propMu.Unlock()
	if slices.Contains(c.declared, name) {
		return
	}
	c.declared = append(c.declared, name)
}

// DeclaredProperties returns the declared names in declaration order.
func (c *Client) DeclaredProperties() []string {
	c.propMu.RLock()
	defer c.propMu.RUnlock()
	return slices.Clone(c.declared)
}

// PropertySnapshot returns a copy of the last values read.
func (c *Client) PropertySnapshot() map[string]any {
	c.propMu.RLock()
	defer c.propMu.RUnlock()
	return maps.Clone(c.snapshot)
}

// RefreshDeclaredProperties re-reads every declared property.
//
// Returns:
//   - map[string]any: Copy of the updated snapshot
//   - error: If any chunk of the read fails; earlier chunks stay applied
func (c *Client) RefreshDeclaredProperties(ctx context.Context) (map[string]any, error) {
	if _, err := c.loadProperties(ctx, c.DeclaredProperties()); err != nil {
		return nil, err
	}
	return c.PropertySnapshot(), nil
}

// loadProperties reads names with get_prop and merges them into the snapshot.
// It returns the leading names that were applied, which is all of them when
// err is nil.
func (c *Client) loadProperties(ctx context.Context, names []string) ([]string, error) {
	loaded := 0
	for chunk := range slices.Chunk(names, propertyChunkSize) {
		params := make([]any, len(chunk))
		for i, n := range chunk {
			params[i] = n
		}

		raw, err := c.Call(ctx, "get_prop", params, CallOptions{})
		if err != nil {
			return slices.Clone(names[:loaded]), err
		}

		var values []any
		if err := json.Unmarshal(raw, &values); err != nil {
			return slices.Clone(names[:loaded]), fmt.Errorf("%w: get_prop: %w", ErrUnexpectedResponse, err)
		}
		if len(values) != len(chunk) {
			return slices.Clone(names[:loaded]), fmt.Errorf("%w: get_prop returned %d values for %d properties",
				ErrUnexpectedResponse, len(values), len(chunk))
		}

		c.propMu.Lock()
		for i, n := range chunk {
			c.snapshot[n] = values[i]
		}
		c.propMu.Unlock()
		loaded += len(chunk)
	}
	return slices.Clone(names), nil
}
