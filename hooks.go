package modelrouter

import (
	"context"

	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/registry"
)

// Hooks are optional callbacks invoked at fixed points of every operation.
// Nil fields are skipped. Invocation order within one request:
// BeforeModelSelection, OnModelSelected, BeforeRequest, then AfterRequest on
// success or OnError on failure.
type Hooks struct {
	// BeforeModelSelection may mutate the assembled metadata before the
	// selection engine runs.
	BeforeModelSelection func(ctx context.Context, md *models.Metadata) error

	// OnModelSelected observes the selection and may replace it by returning
	// a non-nil substitute.
	OnModelSelected func(ctx context.Context, sel *registry.SelectedModel) (*registry.SelectedModel, error)

	// BeforeRequest runs after token and cost estimation and before
	// dispatch. Returning an error aborts the request with
	// KindValidationFailed; budget enforcement lives here.
	BeforeRequest func(ctx context.Context, sel *registry.SelectedModel, estimated models.Usage, estimatedCost float64) error

	// AfterRequest receives the realized usage and cost of a completed
	// request. Not invoked for failed or cancelled requests.
	AfterRequest func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64)

	// OnError receives every pipeline failure, tagged with the operation
	// family, before it is returned to the caller.
	OnError func(ctx context.Context, err *Error)
}

// merge overlays the child's hooks onto the parent's: a non-nil child hook
// replaces the parent's.
func (h Hooks) merge(child Hooks) Hooks {
	out := h
	if child.BeforeModelSelection != nil {
		out.BeforeModelSelection = child.BeforeModelSelection
	}
	if child.OnModelSelected != nil {
		out.OnModelSelected = child.OnModelSelected
	}
	if child.BeforeRequest != nil {
		out.BeforeRequest = child.BeforeRequest
	}
	if child.AfterRequest != nil {
		out.AfterRequest = child.AfterRequest
	}
	if child.OnError != nil {
		out.OnError = child.OnError
	}
	return out
}
