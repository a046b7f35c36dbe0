// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/common/metrics"
	"salesforce-query-workers/internal/models"
)

const tracerName = "crm-query.pipeline"

// Request is one free-text question plus the optional literal owner id of
// the person asking.
type Request struct {
	Text    string
	OwnerID string
}

// Options holds settings fixed for the lifetime of an Orchestrator.
type Options struct {
	// OwnerID is used when a Request carries none.
	OwnerID string
}

type Orchestrator struct {
	sessions    SessionProvider
	catalog     *Catalog
	resolver    *Resolver
	synthesizer *Synthesizer
	executor    *Executor
	summarizer  *Summarizer
	opts        Options
	log         logger.Logger
}

func NewOrchestrator(sessions SessionProvider, gateway Gateway, log logger.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Orchestrator{
		sessions:    sessions,
		catalog:     NewCatalog(log),
		resolver:    NewResolver(gateway, log),
		synthesizer: NewSynthesizer(gateway, log),
		executor:    NewExecutor(),
		summarizer:  NewSummarizer(gateway, log),
		opts:        opts,
		log:         log,
	}
}

// ResolveAndSummarize answers request with the configured owner id.
func (o *Orchestrator) ResolveAndSummarize(ctx context.Context, request string) Outcome {
	return o.Run(ctx, Request{Text: request})
}

// Run executes one pipeline pass and always returns exactly one Outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) (out Outcome) {
	start := time.Now()
	runID := uuid.NewString()
	log := o.log.With(map[string]interface{}{"runId": runID})

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.ResolveAndSummarize")
	span.SetAttributes(attribute.String("pipeline.run_id", runID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Pipeline panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			out = Outcome{Kind: OutcomeExecutionFailed, Diagnostic: fmt.Sprintf("internal error: %v", r), Entity: out.Entity, SOQL: out.SOQL}
		}
		out.RunID = runID
		out.Duration = time.Since(start)

		metrics.PipelineRuns.WithLabelValues(string(out.Kind)).Inc()
		span.SetAttributes(attribute.String("pipeline.outcome", string(out.Kind)))
		if out.Kind == OutcomeExecutionFailed {
			span.SetStatus(codes.Error, out.Diagnostic)
		}
		span.End()

		log.Info("Pipeline finished", map[string]interface{}{
			"outcome":  string(out.Kind),
			"entity":   out.Entity,
			"duration": out.Duration.String(),
		})
	}()

	ownerID := o.ownerID(req, log)

	// Session
	session, err := o.sessions.Session(ctx)
	if err != nil || session == nil {
		fields := map[string]interface{}{}
		if err != nil {
			fields["error"] = err.Error()
		}
		log.Warn("No active session", fields)
		return Outcome{Kind: OutcomeNoSession}
	}

	// Entity list
	var entities []string
	o.stage(ctx, "list_entities", func(ctx context.Context) {
		entities, err = o.catalog.ListEntities(ctx, session)
	})
	if err != nil {
		log.Warn("Listing entities failed", map[string]interface{}{"error": err.Error()})
		return Outcome{Kind: OutcomeNoObjects}
	}
	if len(entities) == 0 {
		return Outcome{Kind: OutcomeNoObjects}
	}

	// Resolve
	var res Resolution
	o.stage(ctx, "resolve", func(ctx context.Context) {
		res = o.resolver.Resolve(ctx, req.Text, entities)
	})
	metrics.ResolutionAttempts.Observe(float64(len(res.Attempts)))
	if !res.Resolved {
		return Outcome{Kind: OutcomeUnresolvedEntity, Attempts: res.Attempts}
	}
	out = Outcome{Entity: res.Entity, Attempts: res.Attempts}

	// Fields and synthesis
	var soql *string
	o.stage(ctx, "synthesize", func(ctx context.Context) {
		fields := o.catalog.DescribeFields(ctx, session, res.Entity)
		synth := o.synthesizer
		if ownerID != "" {
			synth = synth.WithOwner(ownerID)
		}
		soql = synth.Synthesize(ctx, res.Entity, fields, req.Text)
	})
	if soql == nil {
		out.Kind = OutcomeNoQueryGenerated
		return out
	}
	out.SOQL = *soql
	log.Info("Generated SOQL query", map[string]interface{}{"entity": res.Entity, "soql": *soql})

	// Execute
	var (
		result *models.QueryResult
		fault  *Fault
	)
	o.stage(ctx, "execute", func(ctx context.Context) {
		result, fault = o.executor.Execute(ctx, session, *soql)
	})
	if fault != nil {
		log.Warn("Query execution failed", map[string]interface{}{"soql": fault.Query, "error": fault.Error()})
		out.Kind = OutcomeExecutionFailed
		out.Diagnostic = fault.Error()
		return out
	}
	out.RecordCount = result.TotalSize

	// Summarize
	o.stage(ctx, "summarize", func(ctx context.Context) {
		out.Summary = o.summarizer.Summarize(ctx, result)
	})
	out.Kind = OutcomeSummary
	return out
}

// ownerID picks the request's owner id, falling back to the configured one.
// Values that are not Salesforce ids are dropped.
func (o *Orchestrator) ownerID(req Request, log logger.Logger) string {
	for _, id := range []string{req.OwnerID, o.opts.OwnerID} {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if models.IsSalesforceID(id) {
			return id
		}
		log.Warn("Ignoring malformed owner id", map[string]interface{}{"ownerId": id})
	}
	return ""
}

// stage runs fn inside a child span and records its duration.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(ctx context.Context)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline."+name, trace.WithAttributes(attribute.String("pipeline.stage", name)))
	defer span.End()

	start := time.Now()
	fn(ctx)
	metrics.PipelineStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
