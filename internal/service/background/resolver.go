package background

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"

	model "github.com/zhouzirui/adventure-chat/backend/internal/model/background"
)

// ErrClosed is returned by Select after Close.
var ErrClosed = errors.New("background resolver closed")

// Status describes one catalog entry after probing.
type Status struct {
	model.Asset
	Available bool        `json:"available"`
	Value     model.Value `json:"value"`
}

// Resolver tracks the background a session currently shows.
//
// Every selection takes a sequence number; a probe result is committed only
// if no newer selection started meanwhile, so the current value is always a
// probed image or a configured gradient.
type Resolver struct {
	catalog *model.Catalog
	prober  Prober

	mu       sync.Mutex
	current  model.Value
	selected int
	seq      uint64
	closed   bool
}

// NewResolver starts on the first fallback gradient until Init or Select
// commits a probed value.
func NewResolver(catalog *model.Catalog, prober Prober) *Resolver {
	return &Resolver{
		catalog: catalog,
		prober:  prober,
		current: catalog.Fallback(0),
	}
}

// Resolve probes asset index and returns its image value, or the gradient
// paired with index when the probe fails. An out-of-range index resolves to
// the first gradient without probing.
func (r *Resolver) Resolve(ctx context.Context, index int) model.Value {
	asset, ok := r.catalog.At(index)
	if !ok {
		return r.catalog.Fallback(0)
	}

	if err := r.prober.Probe(ctx, asset.Path); err != nil {
		log.Debug().Err(err).Int("index", index).Msg("[background] probe failed, using gradient")
		return r.catalog.Fallback(index)
	}
	return model.ImageValue(r.prober.URL(asset.Path))
}

// Init resolves the first asset.
func (r *Resolver) Init(ctx context.Context) model.Value {
	value, _ := r.Select(ctx, 0)
	return value
}

// Select resolves index and makes it current unless a newer selection
// superseded it. It returns the value that is current afterwards.
func (r *Resolver) Select(ctx context.Context, index int) (model.Value, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return model.Value{}, ErrClosed
	}
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	value := r.Resolve(ctx, index)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return model.Value{}, ErrClosed
	}
	// A cancelled check says nothing about the asset.
	if err := ctx.Err(); err != nil {
		return r.current, err
	}
	if seq != r.seq {
		log.Debug().Int("index", index).Msg("[background] discarding superseded probe")
		return r.current, nil
	}
	r.current = value
	r.selected = index
	return value, nil
}

// Current returns the committed background and the index it was selected by.
func (r *Resolver) Current() (model.Value, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.selected
}

// Catalog probes every asset concurrently and reports what each index would
// resolve to.
func (r *Resolver) Catalog(ctx context.Context) []Status {
	return Probe(ctx, r.catalog, r.prober)
}

// Close stops further commits.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Probe resolves every catalog entry concurrently, preserving catalog order.
func Probe(ctx context.Context, catalog *model.Catalog, prober Prober) []Status {
	return iter.Map(catalog.List(), func(asset *model.Asset) Status {
		status := Status{Asset: *asset}
		if err := prober.Probe(ctx, asset.Path); err != nil {
			status.Value = catalog.Fallback(asset.Index)
			return status
		}
		status.Available = true
		status.Value = model.ImageValue(prober.URL(asset.Path))
		return status
	})
}
