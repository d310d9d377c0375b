package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeRemovesTOCBlock(t *testing.T) {
	in := strings.Join([]string{
		"TABLE OF CONTENTS",
		"1.1 General Requirements ......... 3",
		"1.2 Safety Program ......... 5",
		"1.3 Training ......... 9",
		"1.4 Inspections ......... 12",
		"",
		"The contractor shall maintain a site safety program.",
	}, "\n")
	out := Sanitize(in)
	require.NotContains(t, out, ".........")
	require.Contains(t, out, "site safety program")
}

func TestSanitizeKeepsShortNumberedRuns(t *testing.T) {
	// Fewer than five consecutive TOC-like lines stay in place.
	in := "1.1 Scope of work\n1.2 Definitions\n\nBody text follows here."
	out := Sanitize(in)
	require.Contains(t, out, "1.1 Scope of work")
	require.Contains(t, out, "Body text follows here.")
}

func TestSanitizeRemovesPageChrome(t *testing.T) {
	in := "Safety requirements apply.\nPage 3 of 120\n- 4 -\nCONFIDENTIAL\nWorkers wear hard hats."
	out := Sanitize(in)
	require.NotContains(t, out, "Page 3")
	require.NotContains(t, out, "- 4 -")
	require.NotContains(t, out, "CONFIDENTIAL")
	require.Contains(t, out, "hard hats")
}

func TestSanitizeRemovesShortBoilerplateParagraphs(t *testing.T) {
	in := "Actual requirement text for excavation shoring.\n\n" +
		"Copyright 2023 Example Corp. All rights reserved. Subject to terms and conditions of the bid package.\n\n" +
		"Trenches deeper than five feet require protective systems."
	out := Sanitize(in)
	require.NotContains(t, out, "All rights reserved")
	require.Contains(t, out, "protective systems")
}

func TestSanitizeDedupsRepeatedHeaderLines(t *testing.T) {
	in := "Fort Example Barracks Renovation\nSection one content sentence.\n\nFort Example Barracks Renovation\nSection two content sentence."
	out := Sanitize(in)
	require.Equal(t, 1, strings.Count(out, "Fort Example Barracks Renovation"))
	require.Contains(t, out, "Section two content sentence.")
}

func TestSanitizeCollapsesBlankRuns(t *testing.T) {
	in := "alpha paragraph text\n\n\n\n\nbeta paragraph text"
	out := Sanitize(in)
	require.Equal(t, "alpha paragraph text\n\nbeta paragraph text", out)
}

func TestSanitizeDropsTOCRunsMergedByPageFooter(t *testing.T) {
	// Two contents runs of four lines each sit below the block threshold on
	// their own, but removing the page footer between them leaves one run of
	// eight. A single call must already drop the merged run.
	in := strings.Join([]string{
		"1.1 General ......... 3",
		"1.2 Program ......... 5",
		"1.3 Training ......... 9",
		"1.4 Inspections ......... 12",
		"Page 3 of 10",
		"1.5 Reporting ......... 15",
		"1.6 Records ......... 18",
		"1.7 Audits ......... 21",
		"1.8 Closeout ......... 24",
		"",
		"Workers shall attend the daily safety briefing.",
	}, "\n")
	once := Sanitize(in)
	require.NotContains(t, once, ".........")
	require.Equal(t, "Workers shall attend the daily safety briefing.", once)
	require.Equal(t, once, Sanitize(once))
}

func TestSanitizeEmptyInput(t *testing.T) {
	require.Equal(t, "", Sanitize(""))
	require.Equal(t, "", Sanitize("   \n\t  "))
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain single line",
		"TABLE OF CONTENTS\n1.1 A ...... 1\n1.2 B ...... 2\n1.3 C ...... 3\n1.4 D ...... 4\n\nreal content paragraph here",
		"header\nheader\nheader\n\n\n\n\nbody text with details\nPage 1 of 9",
		"Copyright 2021 Acme. All rights reserved.\n\nSubstantive clause about fall protection anchor strength.",
		"mixed \x00 control\x01 chars\n\n\n\nand text",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		require.Equal(t, once, twice, "sanitize not idempotent for %q", in)
	}
}

func TestLooksLikeTOC(t *testing.T) {
	toc := "1.1 General ...... 3\n1.2 Program ...... 5\n1.3 Training ...... 9"
	require.True(t, LooksLikeTOC(toc))
	require.False(t, LooksLikeTOC("The SSHO shall conduct daily inspections of all work areas and document findings."))
}

func TestLooksLikeBoilerplate(t *testing.T) {
	require.True(t, LooksLikeBoilerplate("This document is subject to terms and conditions of the solicitation no. W912-23."))
	require.False(t, LooksLikeBoilerplate("Scaffolds shall be inspected by a competent person before each shift."))
}
