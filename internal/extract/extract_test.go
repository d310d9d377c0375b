package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalName(t *testing.T) {
	require.Equal(t, "concrete cutting", CanonicalName("  Concrete_Cutting "))
	require.Equal(t, "fall hazard", CanonicalName("Fall-Hazard"))
	require.Equal(t, "a b c", CanonicalName("a   b\t c"))
}

func TestDetectActivities(t *testing.T) {
	text := "Work includes concrete placement at the pier deck, selective demolition of fender piles, and crane operations from a barge."
	got := DetectActivities(text)
	require.Contains(t, got, "concrete placement")
	require.Contains(t, got, "demolition")
	require.Contains(t, got, "crane operations")
	require.NotContains(t, got, "roofing")
}

func TestDetectHazards(t *testing.T) {
	text := "Grinding creates silica exposure; work near the bulkhead edge is a fall hazard."
	got := DetectHazards(text)
	require.Equal(t, []string{"silica", "fall hazard"}, got)
}

func TestExtractProjectMetadata(t *testing.T) {
	text := `PROJECT TITLE: Pier 7 Rehabilitation
Location: Norfolk, VA
Owner: NAVFAC Mid-Atlantic
Prime Contractor: Tidewater Constructors JV`

	meta := ExtractProjectMetadata(text)
	require.Equal(t, "Pier 7 Rehabilitation", meta.ProjectName)
	require.Equal(t, "Norfolk, VA", meta.Location)
	require.Equal(t, "NAVFAC Mid-Atlantic", meta.Owner)
	require.Equal(t, "Tidewater Constructors JV", meta.PrimeContractor)
}

func TestExtractProjectMetadataFallbackLabels(t *testing.T) {
	text := "Site: Building 1420\nAgency: USACE Savannah District\nGeneral Contractor: Coastal Builders"
	meta := ExtractProjectMetadata(text)
	require.Equal(t, "Building 1420", meta.Location)
	require.Equal(t, "USACE Savannah District", meta.Owner)
	require.Equal(t, "Coastal Builders", meta.PrimeContractor)
	require.Empty(t, meta.ProjectName)
}

func TestMergeTerms(t *testing.T) {
	got := MergeTerms([]string{"Concrete_Cutting", "masonry"}, []string{"concrete cutting", "Silica"})
	require.Equal(t, []string{"concrete cutting", "masonry", "silica"}, got)
}
