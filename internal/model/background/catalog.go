package background

import (
	"errors"
	"fmt"
)

// ErrEmptyCatalog is returned when no assets are configured.
var ErrEmptyCatalog = errors.New("background catalog is empty")

// Catalog is the fixed, ordered list of selectable backgrounds.
type Catalog struct {
	items []Asset
}

// NewCatalog validates the assets and numbers them by position.
func NewCatalog(items []Asset) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}

	copied := make([]Asset, len(items))
	for i, item := range items {
		if item.Gradient == "" {
			return nil, fmt.Errorf("background %d: gradient is required", i)
		}
		item.Index = i
		if item.Label == "" {
			item.Label = fmt.Sprintf("Background %d", i+1)
		}
		copied[i] = item
	}
	return &Catalog{items: copied}, nil
}

// FromLists builds a catalog from parallel path, gradient and label lists.
// Labels may be shorter than paths.
func FromLists(paths, gradients, labels []string) (*Catalog, error) {
	if len(paths) != len(gradients) {
		return nil, fmt.Errorf("background catalog: %d paths but %d gradients", len(paths), len(gradients))
	}

	items := make([]Asset, len(paths))
	for i := range paths {
		items[i] = Asset{Path: paths[i], Gradient: gradients[i]}
		if i < len(labels) {
			items[i].Label = labels[i]
		}
	}
	return NewCatalog(items)
}

// List returns the assets in display order.
func (c *Catalog) List() []Asset {
	return append([]Asset(nil), c.items...)
}

// Len reports the number of assets.
func (c *Catalog) Len() int {
	return len(c.items)
}

// At looks up an asset by index.
func (c *Catalog) At(index int) (Asset, bool) {
	if index < 0 || index >= len(c.items) {
		return Asset{}, false
	}
	return c.items[index], true
}

// Fallback returns the gradient paired with index, or the first gradient
// when index is out of range.
func (c *Catalog) Fallback(index int) Value {
	asset, ok := c.At(index)
	if !ok {
		asset = c.items[0]
	}
	return GradientValue(asset.Gradient)
}
