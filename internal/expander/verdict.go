package expander

import (
	"encoding/json"
	"strings"
)

// Verdict is the judge's call on a candidate set.
type Verdict string

const (
	VerdictSufficient   Verdict = "sufficient"
	VerdictInsufficient Verdict = "insufficient"
)

type verdictEnvelope struct {
	Verdict   string `json:"verdict"`
	Reasoning string `json:"reasoning"`
}

// ParseVerdict reads the judge's reply. The reply must carry a JSON
// object with a verdict of exactly "sufficient" or "insufficient";
// anything else, including replies that fail to parse at all, counts
// as insufficient so the scope keeps widening instead of the run
// failing. The returned reasoning is the parsed explanation, or the
// raw reply when parsing failed.
func ParseVerdict(text string) (Verdict, string) {
	raw := strings.TrimSpace(text)

	candidate := stripFence(raw)
	if start := strings.Index(candidate, "{"); start >= 0 {
		if end := strings.LastIndex(candidate, "}"); end > start {
			candidate = candidate[start : end+1]
		}
	}

	var env verdictEnvelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return VerdictInsufficient, raw
	}

	reasoning := strings.TrimSpace(env.Reasoning)
	if reasoning == "" {
		reasoning = raw
	}

	switch strings.ToLower(strings.TrimSpace(env.Verdict)) {
	case string(VerdictSufficient):
		return VerdictSufficient, reasoning
	case string(VerdictInsufficient):
		return VerdictInsufficient, reasoning
	default:
		return VerdictInsufficient, reasoning
	}
}
