package workflows

import (
	"context"
	"errors"
	"testing"

	"safeplan/internal/activities"
	"safeplan/internal/models"
	"safeplan/internal/sections"
	"safeplan/internal/validate"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerDocIngestStubs(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ComputeDocIDActivity", func(context.Context, activities.ComputeDocIDInput) (activities.ComputeDocIDOutput, error) {
		return activities.ComputeDocIDOutput{}, nil
	})
	registerActivityName(env, "UpdateDocStatusActivity", func(context.Context, activities.UpdateDocStatusInput) error { return nil })
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "ExtractProjectMetadataActivity", func(context.Context, activities.ExtractProjectMetadataInput) (activities.ExtractProjectMetadataOutput, error) {
		return activities.ExtractProjectMetadataOutput{}, nil
	})
	registerActivityName(env, "ChunkDocumentActivity", func(context.Context, activities.ChunkDocumentInput) (activities.ChunkDocumentOutput, error) {
		return activities.ChunkDocumentOutput{}, nil
	})
	registerActivityName(env, "EmbedChunksActivity", func(context.Context, activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		return activities.EmbedChunksOutput{}, nil
	})
	registerActivityName(env, "UpsertChunksActivity", func(context.Context, activities.UpsertChunksInput) error { return nil })
	registerActivityName(env, "WriteDocArtifactsActivity", func(context.Context, activities.WriteDocArtifactsInput) error { return nil })
	registerActivityName(env, "LogLLMCallActivity", func(context.Context, activities.LogLLMCallInput) error { return nil })
}

func TestDocumentIngestWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerDocIngestStubs(env)

	env.OnActivity("ComputeDocIDActivity", mock.Anything, activities.ComputeDocIDInput{DocPath: "/tmp/pier7-spec.pdf"}).Return(activities.ComputeDocIDOutput{DocID: "doc123"}, nil)
	env.OnActivity("UpdateDocStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "Project Name: Pier 7 Rehabilitation\nconcrete placement near silica dust", Pages: 2}, nil)
	env.OnActivity("ExtractProjectMetadataActivity", mock.Anything, mock.Anything).Return(activities.ExtractProjectMetadataOutput{Metadata: models.MetadataState{
		ProjectName:    "Pier 7 Rehabilitation",
		WorkActivities: []string{"concrete placement"},
		Hazards:        []string{"silica"},
	}}, nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).Return(activities.ChunkDocumentOutput{Chunks: []activities.ChunkItem{{ChunkID: "c1", DocID: "doc123", ProjectID: "p1", ChunkIndex: 0, Text: "chunk"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("UpsertChunksActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("WriteDocArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{ProjectID: "p1", DocPath: "/tmp/pier7-spec.pdf", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentIngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "processed", out.Status)
	require.Equal(t, "doc123", out.DocID)
	require.Equal(t, models.SourceTypeProject, out.SourceType)
	require.Equal(t, "Pier 7 Rehabilitation", out.Name)
	require.Equal(t, []string{"concrete placement"}, out.Activities)
	require.Equal(t, []string{"silica"}, out.Hazards)
}

func TestDocumentIngestWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerDocIngestStubs(env)

	env.OnActivity("ComputeDocIDActivity", mock.Anything, mock.Anything).Return(activities.ComputeDocIDOutput{DocID: "doc123"}, nil)
	env.OnActivity("UpdateDocStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{}, errors.New("no extractable text found in document"))

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{ProjectID: "p1", DocPath: "/tmp/scan.pdf", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentIngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out.Status)
}

func TestDocumentIngestSkipsMetadataForRegulation(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerDocIngestStubs(env)

	env.OnActivity("ComputeDocIDActivity", mock.Anything, mock.Anything).Return(activities.ComputeDocIDOutput{DocID: "reg1"}, nil)
	env.OnActivity("UpdateDocStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "01.B.02 Safety indoctrination required.", Pages: 1}, nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).Return(activities.ChunkDocumentOutput{}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).Return(activities.EmbedChunksOutput{ProviderName: "mock"}, nil)
	env.OnActivity("UpsertChunksActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("WriteDocArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{ProjectID: "p1", DocPath: "/data/regulation/em_385-1-1.pdf", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentIngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.SourceTypeRegulation, out.SourceType)
	require.Empty(t, out.Name)
	env.AssertNotCalled(t, "ExtractProjectMetadataActivity", mock.Anything, mock.Anything)
}

// acceptedSectionText passes every hard validation check: all required
// subsection markers, an EM 385 reference, no placeholders, no banned phrases.
const acceptedSectionText = "Purpose: Workers complete a four-hour site indoctrination before unescorted access [c1] (p 12).\n\n" +
	"Procedures: Refresher sessions run every six months and cover pier fall hazards [c2] (p 14).\n\n" +
	"Responsibilities: The site safety officer maintains the roster and audits it weekly [c1] (p 12).\n\n" +
	"Forms and records: Completed rosters are retained in the site trailer for audit [c2] (p 14).\n\n" +
	"References: EM 385-1-1 01.B.02; 01.B.04. Evidence: c1, c2, c3."

func acceptedResult() models.SectionGenerationResult {
	return models.SectionGenerationResult{
		Text: acceptedSectionText,
		Evidence: []models.ExtractedEvidence{
			{ChunkID: "c1", SourceLabel: "pier7-spec.pdf"},
			{ChunkID: "c2", SourceLabel: "pier7-spec.pdf"},
			{ChunkID: "c3", SourceLabel: "EM 385-1-1"},
		},
		Citations: []models.Citation{
			{ChunkID: "c1", SourceLabel: "pier7-spec.pdf"},
			{ChunkID: "c2", SourceLabel: "pier7-spec.pdf"},
			{ChunkID: "c3", SourceLabel: "EM 385-1-1"},
		},
		State: models.StateAccepted,
	}
}

func fullContext() activities.ProjectContextRecord {
	return activities.ProjectContextRecord{
		ProjectName:     "Pier 7 Rehabilitation",
		Location:        "Norfolk, VA",
		Owner:           "NAVFAC Mid-Atlantic",
		PrimeContractor: "Harborline Constructors",
		Activities:      []string{"concrete placement", "crane operations"},
		Hazards:         []string{"silica", "fall hazard"},
	}
}

func registerPlanBuildStubs(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "CreatePlanRunActivity", func(context.Context, activities.CreatePlanRunInput) error { return nil })
	registerActivityName(env, "LoadProjectContextActivity", func(context.Context, activities.LoadProjectContextInput) (activities.LoadProjectContextOutput, error) {
		return activities.LoadProjectContextOutput{}, nil
	})
	registerActivityName(env, "MapSubPlansActivity", func(context.Context, activities.MapSubPlansInput) (activities.MapSubPlansOutput, error) {
		return activities.MapSubPlansOutput{}, nil
	})
	registerActivityName(env, "GenerateSectionActivity", func(context.Context, activities.GenerateSectionInput) (activities.GenerateSectionOutput, error) {
		return activities.GenerateSectionOutput{}, nil
	})
	// The validation activity runs the real validator so the export gate is
	// exercised end to end, not mocked away.
	registerActivityName(env, "ValidatePlanActivity", func(_ context.Context, in activities.ValidatePlanInput) (activities.ValidatePlanOutput, error) {
		state := validate.Validate(sections.Load(), in.Metadata, models.ProcessingState{Sections: in.Sections})
		return activities.ValidatePlanOutput{Validation: state}, nil
	})
	registerActivityName(env, "WriteRunManifestActivity", func(context.Context, activities.WriteRunManifestInput) (activities.WriteRunManifestOutput, error) {
		return activities.WriteRunManifestOutput{}, nil
	})
	registerActivityName(env, "WritePlanArtifactsActivity", func(context.Context, activities.WritePlanArtifactsInput) (activities.WritePlanArtifactsOutput, error) {
		return activities.WritePlanArtifactsOutput{}, nil
	})
	registerActivityName(env, "UpdatePlanRunActivity", func(context.Context, activities.UpdatePlanRunInput) error { return nil })
}

func TestPlanBuildWorkflowExportsWhenAllSectionsAccepted(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PlanBuildWorkflow)
	registerPlanBuildStubs(env)

	env.OnActivity("CreatePlanRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LoadProjectContextActivity", mock.Anything, mock.Anything).Return(activities.LoadProjectContextOutput{Context: fullContext()}, nil)
	env.OnActivity("MapSubPlansActivity", mock.Anything, mock.Anything).Return(activities.MapSubPlansOutput{Plans: []activities.SubPlanStatus{
		{PlanName: "Silica Compliance Plan", Status: sections.PlanRequired, State: sections.PlanPending, Triggers: []string{"silica"}},
	}}, nil)
	env.OnActivity("GenerateSectionActivity", mock.Anything, mock.Anything).Return(activities.GenerateSectionOutput{Result: acceptedResult()}, nil)
	env.OnActivity("WriteRunManifestActivity", mock.Anything, mock.Anything).Return(activities.WriteRunManifestOutput{Path: "/out/p1/runs/r1/manifest.json"}, nil)
	env.OnActivity("WritePlanArtifactsActivity", mock.Anything, mock.Anything).Return(activities.WritePlanArtifactsOutput{Paths: []string{"/out/p1/runs/r1/plan.json"}}, nil)

	var runUpdate activities.UpdatePlanRunInput
	env.OnActivity("UpdatePlanRunActivity", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		runUpdate = args.Get(1).(activities.UpdatePlanRunInput)
	}).Return(nil)

	env.ExecuteWorkflow(PlanBuildWorkflow, PlanBuildInput{RunID: "r1", ProjectID: "p1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var manifestPath string
	require.NoError(t, env.GetWorkflowResult(&manifestPath))
	require.Equal(t, "/out/p1/runs/r1/manifest.json", manifestPath)
	require.False(t, runUpdate.ExportBlocked)
	require.Equal(t, "completed", runUpdate.Status)
	env.AssertCalled(t, "WritePlanArtifactsActivity", mock.Anything, mock.Anything)
}

func TestPlanBuildWorkflowBlocksExportOnFallbackSections(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PlanBuildWorkflow)
	registerPlanBuildStubs(env)

	env.OnActivity("CreatePlanRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LoadProjectContextActivity", mock.Anything, mock.Anything).Return(activities.LoadProjectContextOutput{Context: fullContext()}, nil)
	env.OnActivity("MapSubPlansActivity", mock.Anything, mock.Anything).Return(activities.MapSubPlansOutput{}, nil)
	env.OnActivity("GenerateSectionActivity", mock.Anything, mock.Anything).Return(activities.GenerateSectionOutput{Result: models.SectionGenerationResult{
		Text:         models.InsufficientEvidenceSentinel,
		Insufficient: true,
		State:        models.StateInsufficientEvidence,
	}}, nil)
	env.OnActivity("WriteRunManifestActivity", mock.Anything, mock.Anything).Return(activities.WriteRunManifestOutput{Path: "/out/p1/runs/r2/manifest.json"}, nil)

	var runUpdate activities.UpdatePlanRunInput
	env.OnActivity("UpdatePlanRunActivity", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		runUpdate = args.Get(1).(activities.UpdatePlanRunInput)
	}).Return(nil)

	env.ExecuteWorkflow(PlanBuildWorkflow, PlanBuildInput{RunID: "r2", ProjectID: "p1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var manifestPath string
	require.NoError(t, env.GetWorkflowResult(&manifestPath))
	require.Equal(t, "/out/p1/runs/r2/manifest.json", manifestPath)
	require.True(t, runUpdate.ExportBlocked)
	require.Equal(t, "blocked", runUpdate.Status)
	env.AssertNotCalled(t, "WritePlanArtifactsActivity", mock.Anything, mock.Anything)
}

func TestPlanBuildWorkflowFallsBackOnRetrievalFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PlanBuildWorkflow)
	registerPlanBuildStubs(env)

	env.OnActivity("CreatePlanRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LoadProjectContextActivity", mock.Anything, mock.Anything).Return(activities.LoadProjectContextOutput{Context: fullContext()}, nil)
	env.OnActivity("MapSubPlansActivity", mock.Anything, mock.Anything).Return(activities.MapSubPlansOutput{}, nil)
	env.OnActivity("GenerateSectionActivity", mock.Anything, mock.Anything).Return(activities.GenerateSectionOutput{}, errors.New("vector store unreachable"))
	env.OnActivity("WriteRunManifestActivity", mock.Anything, mock.Anything).Return(activities.WriteRunManifestOutput{Path: "/out/p1/runs/r3/manifest.json"}, nil)
	env.OnActivity("UpdatePlanRunActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(PlanBuildWorkflow, PlanBuildInput{RunID: "r3", ProjectID: "p1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertNotCalled(t, "WritePlanArtifactsActivity", mock.Anything, mock.Anything)
}

func TestAHABuildWorkflowWritesReport(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AHABuildWorkflow)
	registerActivityName(env, "EmbedQueryActivity", func(context.Context, activities.EmbedQueryInput) (activities.EmbedQueryOutput, error) {
		return activities.EmbedQueryOutput{}, nil
	})
	registerActivityName(env, "SearchChunksActivity", func(context.Context, activities.SearchChunksInput) (activities.SearchChunksOutput, error) {
		return activities.SearchChunksOutput{}, nil
	})
	registerActivityName(env, "LLMGenerateActivity", func(context.Context, activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
		return activities.LLMGenerateOutput{}, nil
	})
	registerActivityName(env, "LogLLMCallActivity", func(context.Context, activities.LogLLMCallInput) error { return nil })
	registerActivityName(env, "WriteAHAReportActivity", func(context.Context, activities.WriteAHAReportInput) (activities.WriteAHAReportOutput, error) {
		return activities.WriteAHAReportOutput{}, nil
	})

	env.OnActivity("EmbedQueryActivity", mock.Anything, mock.Anything).Return(activities.EmbedQueryOutput{Vector: []float32{0.1}, ProviderName: "mock"}, nil)
	env.OnActivity("SearchChunksActivity", mock.Anything, mock.Anything).Return(activities.SearchChunksOutput{Results: []activities.SearchChunk{
		{ChunkID: "c1", SourceLabel: "pier7-spec.pdf", Snippet: "guardrails on the pier edge", Score: 0.8},
	}}, nil)
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.Anything).Return(activities.LLMGenerateOutput{Text: "| Hazard | Control | RAC |\n| Falls | Guardrails [C1] | M |", ProviderName: "mock"}, nil)
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)

	var written activities.WriteAHAReportInput
	env.OnActivity("WriteAHAReportActivity", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(1).(activities.WriteAHAReportInput)
	}).Return(activities.WriteAHAReportOutput{Path: "/out/p1/aha/r1/aha.md"}, nil)

	env.ExecuteWorkflow(AHABuildWorkflow, AHABuildInput{RunID: "r1", ProjectID: "p1", Activities: []string{"crane operations"}, EmbedProviders: 1, LLMProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var path string
	require.NoError(t, env.GetWorkflowResult(&path))
	require.Equal(t, "/out/p1/aha/r1/aha.md", path)
	require.Contains(t, written.Report, "## crane operations")
	require.Contains(t, written.Report, "pier7-spec.pdf:c1")
}
