package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"guardian/internal/evidence"
	"guardian/internal/logging"
	"guardian/internal/retrieval"
	"guardian/internal/services/llm"
)

// ModelClient is the completion surface the auditor needs from the LLM
// client.
type ModelClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options tune prompt construction.
type Options struct {
	MaxPromptChars int
}

func (o Options) withDefaults() Options {
	if o.MaxPromptChars <= 0 {
		o.MaxPromptChars = defaultMaxPromptChars
	}
	return o
}

// Auditor judges evidence chunks against their retrieved rules using a
// JSON-mode model call.
type Auditor struct {
	client ModelClient
	opts   Options
	logger *slog.Logger
}

// NewAuditor constructs an auditor. A nil logger disables logging.
func NewAuditor(client ModelClient, opts Options, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Auditor{client: client, opts: opts.withDefaults(), logger: logger}
}

// modelVerdict is the strict response schema expected from the model.
type modelVerdict struct {
	Status       string   `json:"status"`
	Rationale    string   `json:"rationale"`
	CitedRuleIDs []string `json:"cited_rule_ids"`
}

// Audit produces a verdict for one chunk. Transport and fatal model errors
// propagate to the caller; malformed model output never does. A response
// that cannot be parsed after one corrective re-prompt degrades the chunk to
// uncertain. The returned warnings describe degradations and stripped
// citations and feed the report's pipeline_errors.
func (a *Auditor) Audit(ctx context.Context, chunk evidence.Chunk, matches []retrieval.RuleMatch) (Verdict, []string, error) {
	systemPrompt := buildSystemPrompt(matches, a.opts.MaxPromptChars)
	userPrompt := buildUserPrompt(chunk)

	verdict := Verdict{ChunkID: chunk.ID, ChunkStart: chunk.Start, CitedRuleIDs: []string{}}
	var warnings []string

	content, err := a.client.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return Verdict{}, nil, err
	}

	parsed, parseErr := decodeVerdict(content)
	if parseErr != nil {
		a.logger.Warn("model response unparseable, re-prompting",
			logging.String(logging.FieldChunkID, chunk.ID),
			logging.Error(parseErr))
		content, err = a.client.CompleteJSON(ctx, systemPrompt, userPrompt+"\n\n"+correctiveInstruction)
		if err != nil {
			return Verdict{}, nil, err
		}
		parsed, parseErr = decodeVerdict(content)
	}
	if parseErr != nil {
		verdict.Status = StatusUncertain
		verdict.Rationale = "parse_failure"
		verdict.RawModelOutput = content
		warnings = append(warnings, fmt.Sprintf("chunk %s: model output unparseable after re-prompt: %v", chunk.ID, parseErr))
		return verdict, warnings, nil
	}

	verdict.Status = Status(parsed.Status)
	verdict.Rationale = parsed.Rationale
	verdict.RawModelOutput = content

	cited, stripped := filterCitations(parsed.CitedRuleIDs, matches)
	verdict.CitedRuleIDs = cited
	for _, ruleID := range stripped {
		warnings = append(warnings, fmt.Sprintf("chunk %s: stripped citation of unretrieved rule %s", chunk.ID, ruleID))
	}

	if len(matches) == 0 && verdict.Status == StatusCompliant {
		verdict.Status = StatusUncertain
		warnings = append(warnings, fmt.Sprintf("chunk %s: no rules retrieved, compliant downgraded to uncertain", chunk.ID))
	}
	return verdict, warnings, nil
}

// decodeVerdict parses and validates the model payload. An unknown status is
// treated the same as unparseable JSON.
func decodeVerdict(content string) (modelVerdict, error) {
	var parsed modelVerdict
	if err := llm.DecodeModelJSON(content, &parsed); err != nil {
		return modelVerdict{}, err
	}
	if !Status(parsed.Status).Valid() {
		return modelVerdict{}, fmt.Errorf("unknown status %q", parsed.Status)
	}
	return parsed, nil
}

// filterCitations keeps only rule IDs that were actually retrieved for the
// chunk, deduplicated and sorted. The second return value lists what was
// stripped.
func filterCitations(cited []string, matches []retrieval.RuleMatch) ([]string, []string) {
	known := make(map[string]bool, len(matches))
	for _, m := range matches {
		known[m.RuleID] = true
	}
	kept := make([]string, 0, len(cited))
	seen := make(map[string]bool, len(cited))
	var stripped []string
	for _, ruleID := range cited {
		if seen[ruleID] {
			continue
		}
		seen[ruleID] = true
		if known[ruleID] {
			kept = append(kept, ruleID)
		} else {
			stripped = append(stripped, ruleID)
		}
	}
	sort.Strings(kept)
	return kept, stripped
}
