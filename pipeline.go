package modelrouter

import (
	"context"
	"fmt"
	"time"

	"github.com/ferro-labs/model-router/internal/logging"
	"github.com/ferro-labs/model-router/internal/metrics"
	"github.com/ferro-labs/model-router/internal/requestlog"
	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
	"github.com/ferro-labs/model-router/registry"
	"github.com/ferro-labs/model-router/tokens"
)

// operation describes one operation family to the generic pipeline: its
// static capability requirements, how to derive dynamic requirements from
// the payload, how to reach handler and provider dispatch methods, and the
// chunk/response adapters used by the fallback ladder.
type operation[Req, Resp, Chunk any] struct {
	name       string // e.g. "chat"
	streamName string // e.g. "chat-stream"; empty for get-only families

	required models.CapabilitySet

	model    func(req Req) string
	setModel func(req *Req, id string)
	derive   func(req Req) (models.CapabilitySet, models.ParameterSet)
	estimate func(e *tokens.Estimator, req Req) models.Usage
	validate func(req Req) error // optional pre-dispatch payload check

	handlerGet    func(h *registry.ModelHandler) func(context.Context, Req) (*Resp, error)
	handlerStream func(h *registry.ModelHandler) func(context.Context, Req) (<-chan Chunk, error)

	providerGet    func(p providers.Provider) (func(context.Context, Req) (*Resp, error), bool)
	providerStream func(p providers.Provider) (func(context.Context, Req) (<-chan Chunk, error), bool)

	// Adapters between the streaming and non-streaming shapes. Nil means the
	// direction is unsupported and the corresponding ladder rungs are
	// skipped (embeddings support neither).
	chunksToResponse func(model string, chunks []Chunk) (*Resp, error)
	responseToChunks func(resp *Resp) []Chunk

	usageOf    func(resp *Resp) *models.Usage
	chunkUsage func(c Chunk) *models.Usage
	chunkErr   func(c Chunk) error
}

// prepared carries the pipeline state shared by the get and stream paths
// after selection and the pre-dispatch hooks have run.
type prepared struct {
	rc        *RequestContext
	sel       *registry.SelectedModel
	estimated models.Usage
	estCost   float64
}

// prepare runs the common head of the pipeline: context assembly, payload
// validation, metadata hooks, selection, token and cost estimation, and the
// BeforeRequest hook.
func prepare[Req, Resp, Chunk any](ctx context.Context, r *Router, op *operation[Req, Resp, Chunk], opName string, streaming bool, req *Req, opts []RequestOption) (*prepared, *Error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindCancelled, opName, "request cancelled", err)
	}

	rc, err := r.buildRequestContext(ctx, opts)
	if err != nil {
		return nil, newError(KindValidationFailed, opName, "context assembly failed", err)
	}
	if op.validate != nil {
		if err := op.validate(*req); err != nil {
			return nil, newError(KindValidationFailed, opName, "request validation failed", err)
		}
	}

	md := rc.Metadata
	if r.hooks.BeforeModelSelection != nil {
		if err := r.hooks.BeforeModelSelection(ctx, &md); err != nil {
			return nil, newError(KindValidationFailed, opName, "beforeModelSelection hook rejected request", err)
		}
	}

	explicit := op.model(*req)
	if explicit == "" {
		explicit = md.Model
	}
	derivedCaps, derivedParams := op.derive(*req)

	pred := registry.Predicate{
		Model:              explicit,
		Required:           op.required.Union(derivedCaps).Union(md.Required),
		Optional:           md.Optional,
		RequiredParameters: derivedParams.Union(md.RequiredParameters),
		OptionalParameters: md.OptionalParameters,
		Allow:              md.Providers.Allow(),
		Deny:               md.Providers.Deny(),
		Budget:             md.Budget,
		Weights:            md.Weights,
		MinContextWindow:   md.MinContextWindow,
		Tier:               md.Tier,
		WeightProfile:      md.WeightProfile,
	}
	if streaming {
		pred.RequiredModel = models.CapabilitySet{models.CapStreaming}
	}
	if r.breakers != nil {
		// Open breakers drop their provider from scored selection. A pinned
		// model bypasses the breaker, like it bypasses every other filter.
		pred.Deny = append(pred.Deny, r.breakers.Open()...)
	}

	sel := r.registry.Select(pred)
	if sel == nil {
		if explicit != "" {
			if _, ok := r.registry.Get(explicit); ok {
				return nil, newError(KindProviderCapabilityMissing, opName,
					fmt.Sprintf("model %q does not satisfy the required capabilities for this operation", explicit), nil)
			}
		}
		return nil, newError(KindNoModelFound, opName, "no compatible model found", nil)
	}

	// Downstream hooks and providers must all see the same identity.
	md.Model = sel.Model.ID
	rc.Metadata = md

	if r.hooks.OnModelSelected != nil {
		override, err := r.hooks.OnModelSelected(ctx, sel)
		if err != nil {
			return nil, newError(KindValidationFailed, opName, "onModelSelected hook rejected request", err)
		}
		if override != nil {
			sel = override
			md.Model = sel.Model.ID
			rc.Metadata = md
		}
	}

	op.setModel(req, sel.Model.ID)

	estimated := op.estimate(r.estimator, *req)
	estCost := models.Calculate(sel.Model, estimated, nil).TotalUSD

	if r.hooks.BeforeRequest != nil {
		if err := r.hooks.BeforeRequest(ctx, sel, estimated, estCost); err != nil {
			return nil, newError(KindValidationFailed, opName, "request rejected before dispatch", err)
		}
	}

	return &prepared{rc: rc, sel: sel, estimated: estimated, estCost: estCost}, nil
}

// runGet executes the non-streaming pipeline for one operation family.
func runGet[Req, Resp, Chunk any](ctx context.Context, r *Router, op *operation[Req, Resp, Chunk], req Req, opts []RequestOption) (*Resp, error) {
	started := time.Now()
	p, perr := prepare(ctx, r, op, op.name, false, &req, opts)
	if perr != nil {
		return nil, r.fail(ctx, op.name, perr, nil, time.Since(started))
	}

	resp, err := dispatchGet(ctx, r, op, p.sel, req)
	if err != nil {
		return nil, r.fail(ctx, op.name, asRouterError(op.name, err), p.sel, time.Since(started))
	}

	usage := p.estimated
	if u := op.usageOf(resp); u != nil {
		usage = *u
	}
	cost := resolveCost(p.sel.Model, usage)
	r.finish(ctx, op.name, p.sel, usage, cost, time.Since(started))
	return resp, nil
}

// runStream executes the streaming pipeline. Chunks are forwarded in
// provider order; usage accumulates across chunks and AfterRequest fires
// strictly after the final chunk.
func runStream[Req, Resp, Chunk any](ctx context.Context, r *Router, op *operation[Req, Resp, Chunk], req Req, opts []RequestOption) (<-chan Chunk, error) {
	opName := op.streamName
	started := time.Now()
	p, perr := prepare(ctx, r, op, opName, true, &req, opts)
	if perr != nil {
		return nil, r.fail(ctx, opName, perr, nil, time.Since(started))
	}

	source, err := dispatchStream(ctx, r, op, p.sel, req)
	if err != nil {
		return nil, r.fail(ctx, opName, asRouterError(opName, err), p.sel, time.Since(started))
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		var acc models.Usage
		sawUsage := false
		for chunk := range source {
			if cerr := op.chunkErr(chunk); cerr != nil {
				// Already-yielded chunks stay with the caller; the error
				// chunk is forwarded and AfterRequest never fires.
				_ = r.fail(ctx, opName, asRouterError(opName, cerr), p.sel, time.Since(started))
				select {
				case out <- chunk:
				case <-ctx.Done():
				}
				return
			}
			if u := op.chunkUsage(chunk); u != nil {
				acc.Accumulate(*u)
				sawUsage = true
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				_ = r.fail(ctx, opName, newError(KindCancelled, opName, "request cancelled", ctx.Err()), p.sel, time.Since(started))
				return
			}
		}
		if err := ctx.Err(); err != nil {
			_ = r.fail(ctx, opName, newError(KindCancelled, opName, "request cancelled", err), p.sel, time.Since(started))
			return
		}
		usage := acc
		if !sawUsage {
			usage = p.estimated
		}
		cost := resolveCost(p.sel.Model, usage)
		r.finish(ctx, opName, p.sel, usage, cost, time.Since(started))
	}()
	return out, nil
}

// dispatchGet walks the non-streaming fallback ladder: handler get,
// provider get, handler stream, provider stream (the last two converted via
// the chunks-to-response adapter).
func dispatchGet[Req, Resp, Chunk any](ctx context.Context, r *Router, op *operation[Req, Resp, Chunk], sel *registry.SelectedModel, req Req) (*Resp, error) {
	h, _ := r.registry.GetHandler(sel.Model.Provider, sel.Model.ID)

	if h != nil && op.handlerGet != nil {
		if get := op.handlerGet(h); get != nil {
			return get(ctx, req)
		}
	}
	if op.providerGet != nil {
		if get, ok := op.providerGet(sel.Provider); ok {
			return get(ctx, req)
		}
	}
	if op.chunksToResponse != nil {
		if h != nil && op.handlerStream != nil {
			if st := op.handlerStream(h); st != nil {
				return collectStream(ctx, op, sel.Model.ID, st, req)
			}
		}
		if op.providerStream != nil {
			if st, ok := op.providerStream(sel.Provider); ok {
				return collectStream(ctx, op, sel.Model.ID, st, req)
			}
		}
	}
	return nil, newError(KindDispatchUnsupported, op.name,
		fmt.Sprintf("provider %q does not support this operation and no fallback is available", sel.Model.Provider), nil)
}

// collectStream drains a streamer and converts the chunks into a response.
func collectStream[Req, Resp, Chunk any](ctx context.Context, op *operation[Req, Resp, Chunk], model string, st func(context.Context, Req) (<-chan Chunk, error), req Req) (*Resp, error) {
	ch, err := st(ctx, req)
	if err != nil {
		return nil, err
	}
	var chunks []Chunk
	for c := range ch {
		if cerr := op.chunkErr(c); cerr != nil {
			return nil, cerr
		}
		chunks = append(chunks, c)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return op.chunksToResponse(model, chunks)
}

// dispatchStream walks the streaming fallback ladder: handler stream,
// provider stream, handler get, provider get (the last two expanded via the
// response-to-chunks adapter).
func dispatchStream[Req, Resp, Chunk any](ctx context.Context, r *Router, op *operation[Req, Resp, Chunk], sel *registry.SelectedModel, req Req) (<-chan Chunk, error) {
	h, _ := r.registry.GetHandler(sel.Model.Provider, sel.Model.ID)

	if h != nil && op.handlerStream != nil {
		if st := op.handlerStream(h); st != nil {
			return st(ctx, req)
		}
	}
	if op.providerStream != nil {
		if st, ok := op.providerStream(sel.Provider); ok {
			return st(ctx, req)
		}
	}
	if op.responseToChunks != nil {
		var get func(context.Context, Req) (*Resp, error)
		if h != nil && op.handlerGet != nil {
			if g := op.handlerGet(h); g != nil {
				get = g
			}
		}
		if get == nil && op.providerGet != nil {
			if g, ok := op.providerGet(sel.Provider); ok {
				get = g
			}
		}
		if get != nil {
			resp, err := get(ctx, req)
			if err != nil {
				return nil, err
			}
			chunks := op.responseToChunks(resp)
			ch := make(chan Chunk, len(chunks))
			for _, c := range chunks {
				ch <- c
			}
			close(ch)
			return ch, nil
		}
	}
	return nil, newError(KindDispatchUnsupported, op.streamName,
		fmt.Sprintf("provider %q does not support this operation and no fallback is available", sel.Model.Provider), nil)
}

// resolveCost uses the provider-computed cost when present, otherwise
// applies the model's pricing table.
func resolveCost(m models.ModelInfo, usage models.Usage) float64 {
	if usage.Cost != nil {
		return *usage.Cost
	}
	return models.Calculate(m, usage, nil).TotalUSD
}

// fail tags, logs, counts, and delivers a pipeline error to the OnError
// hook, returning the error for the caller. Cancellation suppresses the
// per-model failure counter and the accounting log.
func (r *Router) fail(ctx context.Context, opName string, rerr *Error, sel *registry.SelectedModel, elapsed time.Duration) error {
	if ctx.Err() != nil && rerr.Kind != KindCancelled {
		rerr = newError(KindCancelled, opName, "request cancelled", rerr)
	}

	provider, model := "", ""
	if sel != nil {
		provider, model = sel.Model.Provider, sel.Model.ID
	}
	status := "error"
	if rerr.Kind == KindCancelled {
		status = "cancelled"
	}
	metrics.PipelineErrors.WithLabelValues(opName, string(rerr.Kind)).Inc()
	metrics.RequestsTotal.WithLabelValues(opName, provider, model, status).Inc()

	if sel != nil && rerr.Kind != KindCancelled {
		r.registry.RecordOutcome(sel.Model.Key(), false, elapsed)
		if r.breakers != nil && rerr.Kind == KindProviderError {
			r.breakers.Failure(sel.Model.Provider)
		}
		r.logUsage(ctx, requestlog.Entry{
			Operation:    opName,
			Model:        model,
			Provider:     provider,
			ErrorMessage: rerr.Error(),
		})
	}

	logging.FromContext(ctx).Error("request failed",
		"operation", opName, "kind", string(rerr.Kind), "error", rerr.Error())
	if r.hooks.OnError != nil {
		r.hooks.OnError(ctx, rerr)
	}
	return rerr
}

// finish records a successful request: AfterRequest hook, stats, per-model
// metrics, Prometheus counters, and the accounting log.
func (r *Router) finish(ctx context.Context, opName string, sel *registry.SelectedModel, usage models.Usage, cost float64, elapsed time.Duration) {
	if r.hooks.AfterRequest != nil {
		r.hooks.AfterRequest(ctx, sel, usage, cost)
	}
	r.stats.record(cost, elapsed)
	r.registry.RecordOutcome(sel.Model.Key(), true, elapsed)
	if r.breakers != nil {
		r.breakers.Success(sel.Model.Provider)
	}

	provider, model := sel.Model.Provider, sel.Model.ID
	metrics.RequestsTotal.WithLabelValues(opName, provider, model, "success").Inc()
	metrics.RequestDuration.WithLabelValues(opName, provider, model).Observe(elapsed.Seconds())
	metrics.TokensInput.WithLabelValues(provider, model).Add(float64(usage.InputTokens()))
	metrics.TokensOutput.WithLabelValues(provider, model).Add(float64(usage.OutputTokens()))
	metrics.CostTotal.WithLabelValues(provider, model).Add(cost)
	metrics.SelectionScore.WithLabelValues(provider, model).Observe(sel.Score)

	r.logUsage(ctx, requestlog.Entry{
		Operation:    opName,
		Model:        model,
		Provider:     provider,
		InputTokens:  usage.InputTokens(),
		OutputTokens: usage.OutputTokens(),
		CostUSD:      cost,
	})
}

func (r *Router) logUsage(ctx context.Context, entry requestlog.Entry) {
	if r.usageLog == nil {
		return
	}
	entry.TraceID = logging.TraceIDFromContext(ctx)
	if err := r.usageLog.Write(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("usage log write failed", "error", err)
	}
}
