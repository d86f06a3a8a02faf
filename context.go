package modelrouter

import (
	"context"

	"github.com/ferro-labs/model-router/models"
)

// RequestContext is the immutable-after-build envelope carried through one
// operation: the resolved context values, the resolved selection metadata,
// and a back-reference to the router for composed operations.
type RequestContext struct {
	Values   map[string]any
	Metadata models.Metadata
	Router   *Router
}

// RequestOption adjusts one operation call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	metadata models.Metadata
	values   map[string]any
}

// WithMetadata supplies per-call selection metadata, merged over the
// router's defaults under the field-specific rules.
func WithMetadata(md models.Metadata) RequestOption {
	return func(o *requestOptions) {
		o.metadata = models.MergeMetadata(o.metadata, md)
	}
}

// WithContextValues supplies per-call context values; they take precedence
// over defaults and the ProvideContext callback.
func WithContextValues(values map[string]any) RequestOption {
	return func(o *requestOptions) {
		if o.values == nil {
			o.values = make(map[string]any, len(values))
		}
		for k, v := range values {
			o.values[k] = v
		}
	}
}

// buildRequestContext assembles the full request envelope. Precedence for
// both values and metadata: defaults, then the Provide callback (which
// receives defaults merged with the caller's input), then the caller's
// input, then the facade back-reference.
func (r *Router) buildRequestContext(ctx context.Context, opts []RequestOption) (*RequestContext, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	values := make(map[string]any, len(r.defaultContext)+len(o.values))
	for k, v := range r.defaultContext {
		values[k] = v
	}
	for k, v := range o.values {
		values[k] = v
	}
	if r.provideContext != nil {
		provided, err := r.provideContext(ctx, values)
		if err != nil {
			return nil, err
		}
		for k, v := range provided {
			values[k] = v
		}
		// The caller's own values still win over provided ones.
		for k, v := range o.values {
			values[k] = v
		}
	}

	md := o.metadata
	if r.defaultMetadata != nil {
		md = models.MergeMetadata(*r.defaultMetadata, o.metadata)
	}
	if r.provideMetadata != nil {
		provided, err := r.provideMetadata(ctx, md)
		if err != nil {
			return nil, err
		}
		md = models.MergeMetadata(provided, o.metadata)
	}

	return &RequestContext{Values: values, Metadata: md, Router: r}, nil
}
