package contamination

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterRemovesUngroundedSentence(t *testing.T) {
	var g Guard
	text := "The SSHO conducts inspections. This is based on LLM guidance. Workers must wear PPE."
	evidence := []string{"SSHO conducts inspections", "Workers must wear PPE"}

	cleaned, removed := g.Filter(text, evidence, 0)
	require.Equal(t, 1, removed)
	require.Contains(t, cleaned, "The SSHO conducts inspections.")
	require.Contains(t, cleaned, "Workers must wear PPE.")
	require.NotContains(t, cleaned, "LLM guidance")
}

func TestFilterBannedPhraseWithoutEvidence(t *testing.T) {
	var g Guard
	text := "Hard hats are required on site. It is important to note that safety matters. Gloves protect hands from cuts and abrasion during handling."

	cleaned, removed := g.Filter(text, nil, 0)
	require.Equal(t, 1, removed)
	require.NotContains(t, cleaned, "important to note")
	require.Contains(t, cleaned, "Hard hats are required on site.")
}

func TestFilterCollapseSignalsInsufficiency(t *testing.T) {
	var g Guard
	text := "Generally speaking safety is good. It is important to note hazards exist. This text is AI generated."

	cleaned, removed := g.Filter(text, nil, 0)
	require.Empty(t, cleaned)
	require.Equal(t, 3, removed)
}

func TestFilterEmptyInput(t *testing.T) {
	var g Guard
	cleaned, removed := g.Filter("   ", []string{"evidence"}, 0)
	require.Empty(t, cleaned)
	require.Zero(t, removed)
}

func TestFilterNoEvidenceMeansNoOverlapCheck(t *testing.T) {
	var g Guard
	text := "Excavations deeper than five feet require protective systems."
	cleaned, removed := g.Filter(text, nil, 0)
	require.Equal(t, text, cleaned)
	require.Zero(t, removed)
}

func TestDetectReturnsDistinctMatches(t *testing.T) {
	var g Guard
	text := "This is placeholder text. Also placeholder text again. Details are to be determined."
	matches := g.Detect(text)
	require.Len(t, matches, 2)
	require.Contains(t, strings.ToLower(strings.Join(matches, "|")), "placeholder text")
	require.Contains(t, strings.ToLower(strings.Join(matches, "|")), "to be determined")
}

func TestDetectClean(t *testing.T) {
	var g Guard
	require.Empty(t, g.Detect("The competent person inspects trenches daily."))
}
