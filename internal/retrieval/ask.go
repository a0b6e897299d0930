package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/repotoire/repotoire/internal/llm"
	"github.com/repotoire/repotoire/internal/model"
)

// askTopK is how many retrieval results feed the answer prompt.
const askTopK = 10

// askSystemPrompt constrains the model to the retrieved context.
const askSystemPrompt = `You are a code assistant answering questions about a specific codebase.
Answer using ONLY the provided code context. If the context does not contain
the answer, say so. Cite entities by their qualified names.

Respond with a JSON object:
{"answer": "...", "follow_ups": ["...", "..."]}
with at most 3 follow-up questions the user might ask next.`

// Asker answers natural-language questions by retrieving relevant code and
// prompting an LLM over it.
type Asker struct {
	retriever *Retriever
	client    llm.Client
	maxTokens int
	log       *slog.Logger
}

// NewAsker wires Ask mode over an existing retriever.
func NewAsker(retriever *Retriever, client llm.Client, maxTokens int, log *slog.Logger) *Asker {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Asker{retriever: retriever, client: client, maxTokens: maxTokens, log: log}
}

// Ask retrieves context for the question and generates a grounded answer.
// LLM failures degrade to a plain listing of the top matches rather than
// failing the call; retrieval failures are fatal.
func (a *Asker) Ask(ctx context.Context, query string) (model.Answer, error) {
	start := time.Now()

	// 1. Retrieve supporting code.
	results, err := a.retriever.Search(ctx, query, askTopK, nil, true)
	if err != nil {
		return model.Answer{}, err
	}
	if len(results) == 0 {
		return model.Answer{
			Answer:    "No relevant code was found for this question.",
			ElapsedMs: time.Since(start).Milliseconds(),
		}, nil
	}

	// 2. Confidence is the mean score of the top three matches.
	confidence := topScoreMean(results, 3)

	// 3. Build the prompt context, including recent commit history for the
	// files behind the top matches.
	contextBlock := a.buildContext(ctx, results)

	// 4. Generate, degrading to a result listing if the model call fails.
	raw, err := a.client.Generate(ctx, llm.Request{
		System:    askSystemPrompt,
		Messages:  []llm.Message{{Role: "user", Content: "Question: " + query + "\n\nCode context:\n\n" + contextBlock}},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		a.log.Warn("answer generation failed, returning result listing", "error", err)
		return model.Answer{
			Answer:     fallbackListing(query, results),
			Sources:    results,
			Confidence: 0.3,
			FollowUps:  a.heuristicFollowUps(ctx, results[0]),
			ElapsedMs:  time.Since(start).Milliseconds(),
		}, nil
	}

	answer, followUps := parseAnswer(raw)
	if len(followUps) == 0 {
		followUps = a.heuristicFollowUps(ctx, results[0])
	}
	if len(followUps) > 3 {
		followUps = followUps[:3]
	}
	return model.Answer{
		Answer:     answer,
		Sources:    results,
		Confidence: confidence,
		FollowUps:  followUps,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}, nil
}

// heuristicFollowUps derives up to three follow-up questions from the top
// result: file-scoped always, author- and time-scoped when the file has
// commit history in the graph.
func (a *Asker) heuristicFollowUps(ctx context.Context, top model.RetrievalResult) []string {
	followUps := []string{fmt.Sprintf("What else is defined in %s?", top.FilePath)}

	commits, err := a.retriever.RecentCommits(ctx, top.FilePath, 1)
	if err != nil || len(commits) == 0 {
		return followUps
	}
	if author := commits[0].AuthorName; author != "" {
		followUps = append(followUps, fmt.Sprintf("What else has %s changed recently?", author))
	}
	if at := commits[0].CommittedAt; !at.IsZero() {
		followUps = append(followUps, fmt.Sprintf("What else changed around %s?", at.Format("2006-01-02")))
	}
	return followUps
}

// buildContext renders the retrieved entities, then appends recent commits
// for up to three distinct files. Commit lookups are best-effort.
func (a *Asker) buildContext(ctx context.Context, results []model.RetrievalResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "### %s (%s:%d-%d)\n", r.QualifiedName, r.FilePath, r.LineStart, r.LineEnd)
		if r.Docstring != "" {
			b.WriteString(r.Docstring)
			b.WriteString("\n")
		}
		b.WriteString("```\n")
		b.WriteString(r.Code)
		b.WriteString("\n```\n\n")
	}

	seen := make(map[string]bool)
	for _, r := range results {
		if len(seen) >= 3 || seen[r.FilePath] {
			continue
		}
		seen[r.FilePath] = true
		commits, err := a.retriever.RecentCommits(ctx, r.FilePath, 3)
		if err != nil {
			a.log.Warn("commit lookup failed", "file", r.FilePath, "error", err)
			continue
		}
		if len(commits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Recent commits touching %s:\n", r.FilePath)
		for _, c := range commits {
			fmt.Fprintf(&b, "- %s %s (%s)\n", c.SHA, c.MessageSubject, c.AuthorName)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// topScoreMean averages the first n scores, clamped to [0, 1].
func topScoreMean(results []model.RetrievalResult, n int) float64 {
	if len(results) == 0 {
		return 0
	}
	if n > len(results) {
		n = len(results)
	}
	sum := 0.0
	for _, r := range results[:n] {
		sum += r.Score
	}
	mean := sum / float64(n)
	if mean < 0 {
		return 0
	}
	if mean > 1 {
		return 1
	}
	return mean
}

// fallbackListing renders the top matches as a plain-text answer.
func fallbackListing(query string, results []model.RetrievalResult) string {
	n := len(results)
	if n > 5 {
		n = 5
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Could not generate an answer for %q. Top matches:\n", query)
	for _, r := range results[:n] {
		fmt.Fprintf(&b, "- %s (%s:%d-%d)\n", r.QualifiedName, r.FilePath, r.LineStart, r.LineEnd)
	}
	return b.String()
}

type answerPayload struct {
	Answer    string   `json:"answer"`
	FollowUps []string `json:"follow_ups"`
}

// parseAnswer extracts the JSON payload from the model output, tolerating
// code fences and surrounding prose. Unparseable output becomes the answer
// verbatim with no follow-ups.
func parseAnswer(raw string) (string, []string) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var payload answerPayload
		if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err == nil && payload.Answer != "" {
			return payload.Answer, payload.FollowUps
		}
	}
	return strings.TrimSpace(raw), nil
}
