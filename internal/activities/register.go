package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListSourceDocsActivity)
	w.RegisterActivity(a.ComputeDocIDActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ExtractProjectMetadataActivity)
	w.RegisterActivity(a.ChunkDocumentActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.UpsertChunksActivity)
	w.RegisterActivity(a.EmbedQueryActivity)
	w.RegisterActivity(a.SearchChunksActivity)
	w.RegisterActivity(a.GenerateSectionActivity)
	w.RegisterActivity(a.ValidatePlanActivity)
	w.RegisterActivity(a.MapSubPlansActivity)
	w.RegisterActivity(a.LLMGenerateActivity)
	w.RegisterActivity(a.UpdateDocStatusActivity)
	w.RegisterActivity(a.ListFailedDocsActivity)
	w.RegisterActivity(a.ListProjectDocsActivity)
	w.RegisterActivity(a.UpdateProjectMetadataActivity)
	w.RegisterActivity(a.WriteProjectContextActivity)
	w.RegisterActivity(a.LoadProjectContextActivity)
	w.RegisterActivity(a.WriteIngestSummaryActivity)
	w.RegisterActivity(a.WriteDocArtifactsActivity)
	w.RegisterActivity(a.CreatePlanRunActivity)
	w.RegisterActivity(a.UpdatePlanRunActivity)
	w.RegisterActivity(a.WriteRunManifestActivity)
	w.RegisterActivity(a.WritePlanArtifactsActivity)
	w.RegisterActivity(a.WriteAHAReportActivity)
	w.RegisterActivity(a.LogLLMCallActivity)
}
