package expander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdictSufficient(t *testing.T) {
	v, reasoning := ParseVerdict(`{"verdict": "sufficient", "reasoning": "marts cover the question"}`)
	assert.Equal(t, VerdictSufficient, v)
	assert.Equal(t, "marts cover the question", reasoning)
}

func TestParseVerdictInsufficient(t *testing.T) {
	v, reasoning := ParseVerdict(`{"verdict": "insufficient", "reasoning": "need staging detail"}`)
	assert.Equal(t, VerdictInsufficient, v)
	assert.Equal(t, "need staging detail", reasoning)
}

func TestParseVerdictFenced(t *testing.T) {
	reply := "```json\n{\"verdict\": \"sufficient\", \"reasoning\": \"ok\"}\n```"
	v, reasoning := ParseVerdict(reply)
	assert.Equal(t, VerdictSufficient, v)
	assert.Equal(t, "ok", reasoning)
}

func TestParseVerdictEmbeddedInProse(t *testing.T) {
	reply := `Here is my assessment: {"verdict": "sufficient", "reasoning": "all there"} hope that helps.`
	v, _ := ParseVerdict(reply)
	assert.Equal(t, VerdictSufficient, v)
}

func TestParseVerdictCaseInsensitive(t *testing.T) {
	v, _ := ParseVerdict(`{"verdict": "SUFFICIENT", "reasoning": "x"}`)
	assert.Equal(t, VerdictSufficient, v)
}

func TestParseVerdictUnparseable(t *testing.T) {
	// Anything that does not parse counts as insufficient so the scope
	// keeps widening.
	for _, reply := range []string{
		"maybe?",
		"",
		"yes, these are sufficient",
		`{"verdict": "sufficient"`,
	} {
		v, _ := ParseVerdict(reply)
		assert.Equal(t, VerdictInsufficient, v, "reply %q", reply)
	}
}

func TestParseVerdictUnknownValue(t *testing.T) {
	v, reasoning := ParseVerdict(`{"verdict": "partially", "reasoning": "hard to say"}`)
	assert.Equal(t, VerdictInsufficient, v)
	assert.Equal(t, "hard to say", reasoning)
}

func TestParseVerdictKeepsRawAsReasoningOnFailure(t *testing.T) {
	v, reasoning := ParseVerdict("I cannot decide")
	assert.Equal(t, VerdictInsufficient, v)
	assert.Equal(t, "I cannot decide", reasoning)
}
