package activities

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"safeplan/internal/config"
	"safeplan/internal/models"
	"safeplan/internal/sections"
	"safeplan/internal/storage"
	"safeplan/internal/util"

	"github.com/stretchr/testify/require"
)

func newTestActivities(t *testing.T) *Activities {
	t.Helper()
	cfg := config.Config{
		DataOutRoot:          t.TempDir(),
		ChunkTargetTokens:    120,
		ChunkOverlapTokens:   20,
		ChunkMinTokens:       20,
		EmbedDim:             8,
		EmbedProviders:       "mock",
		LLMProviders:         "mock",
		LLMProvidersExplicit: true,
	}
	a, err := New(cfg, &storage.DB{})
	require.NoError(t, err)
	return a
}

func TestListSourceDocsActivity(t *testing.T) {
	a := newTestActivities(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "regulation"), 0o755))
	for _, name := range []string{"spec.pdf", "notes.txt", "addendum.MD", "photo.jpg", "regulation/em_385-1-1.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	out, err := a.ListSourceDocsActivity(context.Background(), ListSourceDocsInput{InputDir: dir})
	require.NoError(t, err)
	require.Len(t, out.Paths, 4)
	for _, p := range out.Paths {
		require.NotContains(t, p, "photo.jpg")
	}
	require.True(t, sortedStrings(out.Paths))
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func TestComputeDocIDActivity(t *testing.T) {
	a := newTestActivities(t)
	path := filepath.Join(t.TempDir(), "spec.txt")
	content := []byte("division 1 general requirements")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	out, err := a.ComputeDocIDActivity(context.Background(), ComputeDocIDInput{DocPath: path})
	require.NoError(t, err)
	sum := sha256.Sum256(content)
	require.Equal(t, hex.EncodeToString(sum[:]), out.DocID)

	_, err = a.ComputeDocIDActivity(context.Background(), ComputeDocIDInput{DocPath: filepath.Join(t.TempDir(), "missing.txt")})
	require.Error(t, err)
}

func TestExtractTextActivityPlainText(t *testing.T) {
	a := newTestActivities(t)
	path := filepath.Join(t.TempDir(), "spec.txt")
	require.NoError(t, os.WriteFile(path, []byte("Section 11\nSafety requirements apply.\n"), 0o644))

	out, err := a.ExtractTextActivity(context.Background(), ExtractTextInput{DocPath: path})
	require.NoError(t, err)
	require.Contains(t, out.Text, "Safety requirements apply.")
	require.Equal(t, 1, out.Pages)
}

func TestExtractTextActivityEmptyFile(t *testing.T) {
	a := newTestActivities(t)
	path := filepath.Join(t.TempDir(), "blank.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n\n  "), 0o644))

	_, err := a.ExtractTextActivity(context.Background(), ExtractTextInput{DocPath: path})
	require.ErrorIs(t, err, util.ErrNoExtractableText)
}

func TestChunkDocumentActivityDeterministicIDs(t *testing.T) {
	a := newTestActivities(t)
	var b strings.Builder
	b.WriteString("[[PAGE 1]]\n")
	for i := 0; i < 400; i++ {
		b.WriteString("requirement\n")
	}
	in := ChunkDocumentInput{
		DocID:     "doc1",
		ProjectID: "p1",
		Text:      b.String(),
		Version:   "v1",
	}

	first, err := a.ChunkDocumentActivity(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, first.Chunks)
	for i, c := range first.Chunks {
		require.Equal(t, i, c.ChunkIndex)
		require.Equal(t, "doc1", c.DocID)
		require.Len(t, c.ChunkID, 64)
	}

	second, err := a.ChunkDocumentActivity(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, first.Chunks, second.Chunks)

	in.Version = "v2"
	bumped, err := a.ChunkDocumentActivity(context.Background(), in)
	require.NoError(t, err)
	require.NotEqual(t, first.Chunks[0].ChunkID, bumped.Chunks[0].ChunkID)
}

func TestExtractProjectMetadataActivity(t *testing.T) {
	a := newTestActivities(t)
	text := strings.Join([]string{
		"Project Name: Pier 7 Rehabilitation",
		"Location: Norfolk, VA",
		"Owner: NAVFAC Mid-Atlantic",
		"Prime Contractor: Harborline Constructors",
		"The work includes concrete placement and crane operations near the waterline.",
		"Respirable silica exposure is anticipated during cutting.",
	}, "\n")

	out, err := a.ExtractProjectMetadataActivity(context.Background(), ExtractProjectMetadataInput{ProjectID: "p1", Text: text})
	require.NoError(t, err)
	require.Equal(t, "Pier 7 Rehabilitation", out.Metadata.ProjectName)
	require.Equal(t, "Norfolk, VA", out.Metadata.Location)
	require.Equal(t, "NAVFAC Mid-Atlantic", out.Metadata.Owner)
	require.Equal(t, "Harborline Constructors", out.Metadata.PrimeContractor)
	require.Contains(t, out.Metadata.WorkActivities, "concrete placement")
	require.Contains(t, out.Metadata.WorkActivities, "crane operations")
	require.Contains(t, out.Metadata.Hazards, "silica")
}

func TestMapSubPlansActivity(t *testing.T) {
	a := newTestActivities(t)
	out, err := a.MapSubPlansActivity(context.Background(), MapSubPlansInput{
		Activities: []string{"concrete placement"},
		Hazards:    []string{"silica"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Plans)

	var silicaPlan *SubPlanStatus
	for i := range out.Plans {
		if out.Plans[i].PlanName == "Silica Compliance Plan" {
			silicaPlan = &out.Plans[i]
		}
	}
	require.NotNil(t, silicaPlan)
	require.Equal(t, sections.PlanRequired, silicaPlan.Status)
	require.Equal(t, sections.PlanPending, silicaPlan.State)
	require.Contains(t, silicaPlan.Triggers, "silica")
}

func TestValidatePlanActivityBlocksIncompletePlan(t *testing.T) {
	a := newTestActivities(t)
	out, err := a.ValidatePlanActivity(context.Background(), ValidatePlanInput{
		Metadata: models.MetadataState{},
		Sections: nil,
	})
	require.NoError(t, err)
	require.False(t, out.Validation.CanProceed)
	require.NotEmpty(t, out.Validation.Errors)
}

func TestGenerateSectionActivityUnknownSection(t *testing.T) {
	a := newTestActivities(t)
	_, err := a.GenerateSectionActivity(context.Background(), GenerateSectionInput{ProjectID: "p1", SectionID: "no-such-section"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown section id")
}

func TestWriteRunManifestActivity(t *testing.T) {
	a := newTestActivities(t)
	out, err := a.WriteRunManifestActivity(context.Background(), WriteRunManifestInput{
		ProjectID: "p1",
		RunID:     "r1",
		Manifest:  map[string]any{"run_id": "r1", "export_blocked": true},
	})
	require.NoError(t, err)
	require.FileExists(t, out.Path)

	var got map[string]any
	require.NoError(t, util.ReadJSON(out.Path, &got))
	require.Equal(t, true, got["export_blocked"])
}

func TestWriteDocArtifactsActivity(t *testing.T) {
	a := newTestActivities(t)
	err := a.WriteDocArtifactsActivity(context.Background(), WriteDocArtifactsInput{
		ProjectID:     "p1",
		DocID:         "doc1",
		Metadata:      map[string]any{"pages": 3},
		Chunks:        []ChunkItem{{ChunkID: "c1", DocID: "doc1", Text: "chunk"}},
		ProcessingLog: map[string]any{"status": "processed"},
	})
	require.NoError(t, err)

	base := filepath.Join(a.cfg.DataOutRoot, "p1", "docs", "doc1")
	require.FileExists(t, filepath.Join(base, "metadata.json"))
	require.FileExists(t, filepath.Join(base, "chunks.jsonl"))
	require.FileExists(t, filepath.Join(base, "processing_log.json"))
}

func TestWritePlanArtifactsActivity(t *testing.T) {
	a := newTestActivities(t)
	out, err := a.WritePlanArtifactsActivity(context.Background(), WritePlanArtifactsInput{
		ProjectID: "p1",
		RunID:     "r1",
		Metadata:  models.MetadataState{ProjectName: "Pier 7 Rehabilitation"},
		Sections:  []models.DocumentSection{{SectionID: "training", Name: "Training"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Paths, 2)
	for _, p := range out.Paths {
		require.FileExists(t, p)
	}
}

func TestWriteAHAReportActivity(t *testing.T) {
	a := newTestActivities(t)
	out, err := a.WriteAHAReportActivity(context.Background(), WriteAHAReportInput{
		ProjectID: "p1",
		RunID:     "r1",
		Report:    "# Activity Hazard Analysis\n",
	})
	require.NoError(t, err)
	b, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Contains(t, string(b), "Activity Hazard Analysis")
}
