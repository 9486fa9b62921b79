// Package provider contains the per-vendor upload strategies and the registry
// that resolves them by source type.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// ErrNoProvider is wrapped into resolution failures for unregistered source
// types.
var ErrNoProvider = errors.New("no provider for source type")

// ProgressFunc receives byte- or step-level progress as a 0-100 percentage.
// Implementations may call it from the transfer goroutine only.
type ProgressFunc func(pct int)

// VendorResult carries what the vendor handed back for a finished transfer.
type VendorResult struct {
	// VideoURI is the vendor-assigned identifier of the stored video
	// (a Vimeo video uri, a YouTube video id, an archive object key).
	VideoURI string
	// UploadURL is the resumable upload session URL, when the vendor protocol
	// has one; kept on the job record for vendor-side status polling.
	UploadURL string
	// SourceURL is the playback URL persisted onto the media source record.
	SourceURL string
}

// Provider transfers one upload context's payload to a specific vendor.
// Implementations must stream rather than buffer whole payloads, must not
// keep per-job state outside the invocation, and are called concurrently for
// different jobs.
type Provider interface {
	// SourceType declares which source type this provider serves.
	SourceType() model.SourceType
	// Upload performs the transfer, reporting progress through report (which
	// may be nil). The context carries the per-job vendor-call deadline.
	Upload(ctx context.Context, uc *model.UploadContext, report ProgressFunc) (*VendorResult, error)
}

// Registry maps source types to providers. It is built once at startup and
// validated there, so an unresolvable type at request time means the type was
// never registered rather than a wiring mistake.
type Registry struct {
	providers map[model.SourceType]Provider
}

// NewRegistry indexes the given providers, rejecting duplicate claims on the
// same source type.
func NewRegistry(providers ...Provider) (*Registry, error) {
	index := make(map[model.SourceType]Provider, len(providers))
	for _, p := range providers {
		st := p.SourceType()
		if _, dup := index[st]; dup {
			return nil, fmt.Errorf("duplicate provider for source type %s", st)
		}
		index[st] = p
	}
	return &Registry{providers: index}, nil
}

// Resolve returns the provider claiming the given source type. Matching is
// case-insensitive on the raw string.
func (r *Registry) Resolve(raw string) (Provider, error) {
	st, err := model.ParseSourceType(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, raw)
	}
	p, ok := r.providers[st]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, st)
	}
	return p, nil
}
