package audit

import (
	"fmt"
	"strings"

	"guardian/internal/evidence"
	"guardian/internal/retrieval"
)

const (
	defaultMaxPromptChars = 12000
	maxRuleChars          = 2000

	systemPreamble = `You are a senior brand compliance auditor. Judge the evidence excerpt below against the official compliance rules provided, and only against those rules.

Respond with strictly valid JSON in exactly this shape:
{"status": "compliant" | "violation" | "uncertain", "rationale": "...", "cited_rule_ids": ["..."]}

Cite only rule IDs that appear in the rules list. If the rules provided do not cover the excerpt, say so in the rationale rather than inventing a rule.`

	correctiveInstruction = `Your previous reply was not valid JSON. Respond again with ONLY the JSON object, no code fences, no commentary.`
)

// buildSystemPrompt renders the rule context inside the prompt budget.
// Individual rule texts are capped and rules that would overflow the budget
// are dropped from the end of the (already score-ordered) match list.
func buildSystemPrompt(matches []retrieval.RuleMatch, maxChars int) string {
	if maxChars <= 0 {
		maxChars = defaultMaxPromptChars
	}
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nOFFICIAL COMPLIANCE RULES:\n")
	if len(matches) == 0 {
		b.WriteString("(no rules were retrieved for this excerpt)\n")
		return b.String()
	}
	for _, match := range matches {
		text := match.RuleText
		if len(text) > maxRuleChars {
			text = text[:maxRuleChars] + "..."
		}
		entry := fmt.Sprintf("[%s] %s\n", match.RuleID, text)
		if b.Len()+len(entry) > maxChars {
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}

func buildUserPrompt(chunk evidence.Chunk) string {
	return fmt.Sprintf(
		"EVIDENCE EXCERPT\nchunk_id: %s\nsource: %s\ntime: %.1fs - %.1fs\ntext: %s",
		chunk.ID, chunk.Source, chunk.Start, chunk.End, chunk.Text,
	)
}
