// Package autofix generates candidate fixes for a finding with an LLM,
// verifies each in a sandbox, and selects the best survivor. Generation is
// gated by the customer's entitlement before any model call is made.
package autofix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/repotoire/repotoire/internal/entitlements"
	"github.com/repotoire/repotoire/internal/learning"
	"github.com/repotoire/repotoire/internal/llm"
	"github.com/repotoire/repotoire/internal/model"
	"github.com/repotoire/repotoire/internal/sandbox"
	"github.com/repotoire/repotoire/internal/telemetry"
)

// candidateTemperature trades determinism for diversity across the N
// parallel candidates.
const candidateTemperature = 0.7

// ragSnippetCount is how many retrieved snippets seed each fix prompt.
const ragSnippetCount = 5

// ErrNoVerifiedCandidates means every candidate failed generation, syntax,
// or the test-pass-rate filter.
var ErrNoVerifiedCandidates = errors.New("autofix: no verified candidates")

// Searcher supplies repository context for fix prompts. Satisfied by
// retrieval.Retriever.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, kinds []model.EntityKind, includeRelated bool) ([]model.RetrievalResult, error)
}

// Config tunes the best-of-N pipeline.
type Config struct {
	N                      int
	MinTestPassRate        float64
	RequireAllTestsPass    bool
	MinScore               float64
	MaxConcurrentSandboxes int
}

// Generator runs the best-of-N fix pipeline.
type Generator struct {
	client     llm.Client
	sandbox    sandbox.Sandbox
	adapter    *learning.Adapter
	accountant entitlements.Accountant
	searcher   Searcher // nil disables prompt context retrieval
	scorer     *Scorer
	cfg        Config
	log        *slog.Logger

	genDuration metric.Float64Histogram
	candidates  metric.Int64Counter
}

// NewGenerator wires the pipeline. searcher may be nil.
func NewGenerator(client llm.Client, sb sandbox.Sandbox, adapter *learning.Adapter, accountant entitlements.Accountant, searcher Searcher, cfg Config, log *slog.Logger) *Generator {
	if cfg.N < 1 {
		cfg.N = 3
	}
	if cfg.MinTestPassRate <= 0 {
		cfg.MinTestPassRate = 0.8
	}
	if cfg.MaxConcurrentSandboxes < 1 {
		cfg.MaxConcurrentSandboxes = 5
	}

	meter := telemetry.Meter("repotoire/autofix")
	genDur, _ := meter.Float64Histogram("repotoire.fix.duration",
		metric.WithDescription("End-to-end fix generation latency (ms)"),
		metric.WithUnit("ms"),
	)
	cands, _ := meter.Int64Counter("repotoire.fix.candidates",
		metric.WithDescription("Fix candidates by outcome"),
	)
	return &Generator{
		client:      client,
		sandbox:     sb,
		adapter:     adapter,
		accountant:  accountant,
		searcher:    searcher,
		scorer:      NewScorer(DefaultWeights),
		cfg:         cfg,
		log:         log,
		genDuration: genDur,
		candidates:  cands,
	}
}

// Generate produces the best verified fix for a finding, or an error when
// the customer is not entitled or no candidate survives verification.
func (g *Generator) Generate(ctx context.Context, finding Finding, customerID string) (model.FixProposal, error) {
	start := time.Now()

	// 1. Entitlement gate before any LLM spend.
	ent, err := g.accountant.Entitlement(ctx, customerID)
	if err != nil {
		return model.FixProposal{}, fmt.Errorf("autofix: resolve entitlement: %w", err)
	}
	if err := entitlements.CheckAvailable(ent); err != nil {
		return model.FixProposal{}, err
	}
	if err := entitlements.CheckWithinLimit(ent, time.Now()); err != nil {
		return model.FixProposal{}, err
	}

	n := g.cfg.N
	if ent.MaxN > 0 && n > ent.MaxN {
		n = ent.MaxN
	}

	// 2. Retrieve repository context for the prompt. Best-effort.
	snippets := g.retrieveContext(ctx, finding)

	// 3. Generate and verify N candidates concurrently, bounded by the
	// sandbox budget.
	system := buildSystemPrompt(g.adapter.FeedbackPromptBlock(finding.FixType))
	user := buildUserPrompt(finding, snippets)

	results := make([]Candidate, n)
	verified := make([]bool, n)
	sem := semaphore.NewWeighted(int64(g.cfg.MaxConcurrentSandboxes))
	eg, egctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			if err := sem.Acquire(egctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			cand, ok := g.runCandidate(egctx, system, user, finding, snippets)
			results[i] = cand
			verified[i] = ok
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return model.FixProposal{}, fmt.Errorf("autofix: candidate generation: %w", err)
	}

	// 4. Filter to verified candidates.
	var survivors []Candidate
	for i, cand := range results {
		if !verified[i] {
			continue
		}
		if cand.Verification.TestPassRate() < g.cfg.MinTestPassRate {
			continue
		}
		if g.cfg.RequireAllTestsPass && cand.Verification.TestPassRate() < 1.0 {
			continue
		}
		survivors = append(survivors, cand)
	}
	if len(survivors) == 0 {
		g.genDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
		return model.FixProposal{}, ErrNoVerifiedCandidates
	}

	// 5. Rank and pick the winner.
	ranked := g.scorer.Rank(survivors)
	winner := ranked[0]
	if g.cfg.MinScore > 0 && winner.Score < g.cfg.MinScore {
		return model.FixProposal{}, fmt.Errorf("autofix: best candidate score %.2f below minimum %.2f", winner.Score, g.cfg.MinScore)
	}

	// 6. Adjust confidence from decision history and finalize.
	proposal := winner.Proposal
	proposal.Confidence = g.adapter.AdjustConfidence(finding.FixType, finding.Repository, proposal.Confidence)
	if proposal.Metadata == nil {
		proposal.Metadata = make(map[string]any)
	}
	proposal.Metadata["verification"] = winner.Verification
	proposal.Metadata["score"] = winner.Score
	proposal.Metadata["candidates"] = n

	// 7. Account the run. Uncapped tiers skip the counter.
	if ent.MonthlyRunsLimit != model.UnlimitedRuns {
		if err := g.accountant.RecordRun(ctx, customerID); err != nil {
			g.log.Warn("usage accounting failed", "customer_id", customerID, "error", err)
		}
	}

	g.genDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	g.log.Info("fix generated",
		"fix_id", proposal.ID,
		"fix_type", finding.FixType,
		"candidates", n,
		"survivors", len(survivors),
		"score", winner.Score,
	)
	return proposal, nil
}

// runCandidate drives one candidate through prompt, parse, and sandbox
// verification. ok is false when the candidate cannot be considered.
func (g *Generator) runCandidate(ctx context.Context, system, user string, finding Finding, snippets []string) (Candidate, bool) {
	raw, err := g.client.Generate(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: "user", Content: user}},
		Temperature: candidateTemperature,
	})
	if err != nil {
		g.log.Warn("candidate generation failed", "error", err)
		g.candidates.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "llm_error")))
		return Candidate{}, false
	}

	proposal, ok := parseProposal(raw)
	proposal.ID = uuid.NewString()
	proposal.Finding = finding.Description
	proposal.FixType = finding.FixType
	proposal.Status = model.StatusPending
	proposal.CreatedAt = time.Now().UTC()
	proposal.Evidence.RAGSnippets = snippets
	if !ok {
		g.candidates.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "unparseable")))
		return Candidate{Proposal: proposal}, false
	}

	res, err := g.sandbox.Verify(ctx, proposal)
	if err != nil {
		g.log.Warn("sandbox verification failed", "fix_id", proposal.ID, "error", err)
		g.candidates.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "sandbox_error")))
		return Candidate{Proposal: proposal}, false
	}
	if res.SyntaxValid {
		proposal.SyntaxValid = model.SyntaxValid
	} else {
		proposal.SyntaxValid = model.SyntaxInvalid
	}
	if !res.SyntaxValid || res.Error != "" {
		g.candidates.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "rejected")))
		return Candidate{Proposal: proposal, Verification: res}, false
	}

	g.candidates.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "verified")))
	return Candidate{Proposal: proposal, Verification: res}, true
}

// retrieveContext pulls related code for the prompt. Retrieval failure
// degrades to a context-free prompt.
func (g *Generator) retrieveContext(ctx context.Context, finding Finding) []string {
	if g.searcher == nil {
		return nil
	}
	// Prompts only need code snippets; skip relationship expansion.
	results, err := g.searcher.Search(ctx, finding.Description, ragSnippetCount, nil, false)
	if err != nil {
		g.log.Warn("context retrieval failed, prompting without snippets", "error", err)
		return nil
	}
	snippets := make([]string, 0, len(results))
	for _, r := range results {
		if r.Code != "" {
			snippets = append(snippets, r.Code)
		}
	}
	return snippets
}
