package validate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"safeplan/internal/models"
	"safeplan/internal/sections"
)

func goodMeta() models.MetadataState {
	return models.MetadataState{
		ProjectName:     "Pier 7 Rehabilitation",
		Location:        "Norfolk, VA",
		Owner:           "NAVFAC Mid-Atlantic",
		PrimeContractor: "Tidewater Constructors JV",
	}
}

func sectionText() []string {
	return []string{
		"Purpose: establish controls per EM 385-1-1. [c1] (p. 3)",
		"Procedures/Policy/Requirements: daily inspections are documented. [c2] (p. 4)",
		"Responsibilities: the SSHO enforces this section. [c3] (p. 5)",
		"Forms/Logs/Records: inspection logs are retained on site. [c3] (p. 5)",
		"References: 01.A.13; 01.B.02. Evidence: c1, c2, c3.",
	}
}

// fullProcessing builds one compliant DocumentSection per catalog entry.
func fullProcessing(cat *sections.Catalog) models.ProcessingState {
	var proc models.ProcessingState
	for _, def := range cat.Sections {
		proc.Sections = append(proc.Sections, models.DocumentSection{
			SectionID:  def.ID,
			Name:       def.Title,
			Paragraphs: sectionText(),
			Citations:  []models.Citation{{ChunkID: "c1"}, {ChunkID: "c2"}, {ChunkID: "c3"}},
		})
	}
	return proc
}

func TestValidateCleanPass(t *testing.T) {
	cat := sections.Load()
	state := Validate(cat, goodMeta(), fullProcessing(cat))
	require.Empty(t, state.Errors)
	require.True(t, state.CanProceed)
}

func TestValidateMissingSectionBlocks(t *testing.T) {
	cat := sections.Load()
	proc := fullProcessing(cat)
	proc.Sections = proc.Sections[1:]

	state := Validate(cat, goodMeta(), proc)
	require.False(t, state.CanProceed)
	require.Contains(t, state.Errors[0], "missing section")
}

func TestValidatePlaceholderBlocks(t *testing.T) {
	cat := sections.Load()
	for _, token := range []string{
		"«PLACEHOLDER: Insert SSHO Name»",
		"{{ssho_name}}",
		"{project_name}",
		"signed: ____",
	} {
		proc := fullProcessing(cat)
		proc.Sections[0].Paragraphs[2] += " " + token
		state := Validate(cat, goodMeta(), proc)
		require.False(t, state.CanProceed, "token %q should block", token)
	}
}

func TestValidateStrayBraceBlocks(t *testing.T) {
	cat := sections.Load()
	proc := fullProcessing(cat)
	proc.Sections[0].Paragraphs[0] += " stray { brace"
	state := Validate(cat, goodMeta(), proc)
	require.False(t, state.CanProceed)
}

func TestValidateMissingSubsectionMarker(t *testing.T) {
	cat := sections.Load()
	proc := fullProcessing(cat)
	proc.Sections[0].Paragraphs = proc.Sections[0].Paragraphs[:4] // drop References:

	state := Validate(cat, goodMeta(), proc)
	require.False(t, state.CanProceed)
	found := false
	for _, e := range state.Errors {
		if strings.Contains(e, `missing subsection "references:"`) {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateSentinelBlocks(t *testing.T) {
	cat := sections.Load()
	proc := fullProcessing(cat)
	proc.Sections[0].Paragraphs[1] = models.InsufficientEvidenceSentinel + " Procedures:"

	state := Validate(cat, goodMeta(), proc)
	require.False(t, state.CanProceed)
}

func TestValidateBannedPhraseBlocks(t *testing.T) {
	cat := sections.Load()
	proc := fullProcessing(cat)
	proc.Sections[0].Paragraphs[1] += " It is important to note that safety matters."

	state := Validate(cat, goodMeta(), proc)
	require.False(t, state.CanProceed)
}

func TestValidateMetadataGate(t *testing.T) {
	cat := sections.Load()
	meta := goodMeta()
	meta.Owner = ""
	state := Validate(cat, meta, fullProcessing(cat))
	require.False(t, state.CanProceed)

	meta = goodMeta()
	meta.PrimeContractor = "{{prime_contractor}}"
	state = Validate(cat, meta, fullProcessing(cat))
	require.False(t, state.CanProceed)
}

func TestValidateWarningsDoNotBlock(t *testing.T) {
	cat := sections.Load()
	proc := fullProcessing(cat)
	proc.Sections[0].Citations = proc.Sections[0].Citations[:1]
	proc.Sections[1].RegulationOnly = true
	for i := range proc.Sections[2].Paragraphs {
		proc.Sections[2].Paragraphs[i] = strings.ReplaceAll(proc.Sections[2].Paragraphs[i], "EM 385-1-1", "the safety manual")
	}

	state := Validate(cat, goodMeta(), proc)
	require.True(t, state.CanProceed)
	require.GreaterOrEqual(t, len(state.Warnings), 3)
}

func TestFindPlaceholdersGrammar(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"clean text with no tokens", 0},
		{"«PLACEHOLDER: Insert PM name»", 1},
		{"{{ssho_name}} and {{pm_name}}", 2},
		{"{quality_manager}", 1},
		{"a lone } brace", 1},
		{"fill in: _____", 1},
		{"sig: ___ ok", 0}, // 3 underscores do not count
	}
	for i, tc := range cases {
		got := FindPlaceholders(tc.text)
		require.Len(t, got, tc.want, fmt.Sprintf("case %d: %q -> %v", i, tc.text, got))
	}
}
