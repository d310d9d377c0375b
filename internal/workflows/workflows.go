package workflows

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"safeplan/internal/activities"
	"safeplan/internal/generator"
	"safeplan/internal/models"
	"safeplan/internal/providers"
	"safeplan/internal/sections"
	"safeplan/internal/validate"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetDocumentStatus = "GetDocumentStatus"
	QueryGetIngestProgress = "GetIngestProgress"
	QueryGetPlanProgress   = "GetPlanProgress"
	QueryGetAHAProgress    = "GetAHAProgress"
)

type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}, retries: map[string]int{}}
}

func ProjectIngestWorkflow(ctx workflow.Context, input ProjectIngestInput) (string, error) {
	progress := ProjectIngestProgress{
		ProjectID:     input.ProjectID,
		PerDoc:        map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (ProjectIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var listOut activities.ListSourceDocsOutput
	if err := workflow.ExecuteActivity(ctx, "ListSourceDocsActivity", activities.ListSourceDocsInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	merged := activities.ProjectContextRecord{}
	for i := 0; i < len(paths); i += maxChildren {
		end := i + maxChildren
		if end > len(paths) {
			end = len(paths)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		childPaths := make([]string, 0, end-i)
		for _, path := range paths[i:end] {
			progress.PerDoc[path] = "processing"
			workflowID := "doc-" + sanitizeID(input.ProjectID) + "-" + sanitizeID(filepath.Base(path))
			cwo := workflow.ChildWorkflowOptions{WorkflowID: workflowID}
			childCtx := workflow.WithChildOptions(ctx, cwo)
			f := workflow.ExecuteChildWorkflow(childCtx, DocumentIngestWorkflow, DocumentIngestInput{
				ProjectID:       input.ProjectID,
				DocPath:         path,
				ChunkVersion:    defaultChunkVersion(input.ChunkVersion),
				EmbedVersion:    defaultEmbedVersion(input.EmbedVersion),
				EmbedProviders:  input.EmbedProviders,
				CooldownSeconds: input.CooldownSeconds,
			})
			futures = append(futures, f)
			childPaths = append(childPaths, path)
			progress.ChildWorkflow[path] = workflowID
		}

		for idx, f := range futures {
			var result DocumentIngestResult
			err := f.Get(ctx, &result)
			path := childPaths[idx]
			if err != nil {
				progress.Failed++
				progress.PerDoc[path] = "failed"
				continue
			}
			if result.Status == "failed" {
				progress.Failed++
			}
			progress.Done++
			progress.PerDoc[path] = result.Status
			mergeContext(&merged, result)
		}
	}

	if merged.ProjectName != "" || merged.Location != "" || merged.Owner != "" || merged.PrimeContractor != "" {
		_ = workflow.ExecuteActivity(ctx, "UpdateProjectMetadataActivity", activities.UpdateProjectMetadataInput{
			ProjectID: input.ProjectID,
			Metadata: models.MetadataState{
				ProjectName:     merged.ProjectName,
				Location:        merged.Location,
				Owner:           merged.Owner,
				PrimeContractor: merged.PrimeContractor,
			},
		}).Get(ctx, nil)
	}
	_ = workflow.ExecuteActivity(ctx, "WriteProjectContextActivity", activities.WriteProjectContextInput{
		ProjectID: input.ProjectID,
		Context:   merged,
	}).Get(ctx, nil)
	_ = workflow.ExecuteActivity(ctx, "WriteIngestSummaryActivity", activities.WriteIngestSummaryInput{
		ProjectID: input.ProjectID,
		Summary: map[string]any{
			"project_id":     input.ProjectID,
			"total":          progress.Total,
			"done":           progress.Done,
			"failed":         progress.Failed,
			"per_doc_status": progress.PerDoc,
			"generated_at":   workflow.Now(ctx),
		},
	}).Get(ctx, nil)

	return "completed", nil
}

// mergeContext keeps first-seen metadata fields and unions activity/hazard
// terms across documents.
func mergeContext(dst *activities.ProjectContextRecord, result DocumentIngestResult) {
	if dst.ProjectName == "" {
		dst.ProjectName = result.Name
	}
	if dst.Location == "" {
		dst.Location = result.Location
	}
	if dst.Owner == "" {
		dst.Owner = result.Owner
	}
	if dst.PrimeContractor == "" {
		dst.PrimeContractor = result.Prime
	}
	dst.Activities = unionTerms(dst.Activities, result.Activities)
	dst.Hazards = unionTerms(dst.Hazards, result.Hazards)
}

func unionTerms(existing, extra []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(existing)+len(extra))
	for _, t := range existing {
		seen[strings.ToLower(t)] = struct{}{}
		out = append(out, t)
	}
	for _, t := range extra {
		if _, dup := seen[strings.ToLower(t)]; dup {
			continue
		}
		seen[strings.ToLower(t)] = struct{}{}
		out = append(out, t)
	}
	return out
}

func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (DocumentIngestResult, error) {
	sourceType := inferSourceType(input.DocPath)
	status := DocumentStatus{
		DocPath:     input.DocPath,
		SourceType:  sourceType,
		CurrentStep: "init",
		Status:      "processing",
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentStatus, func() (DocumentStatus, error) {
		return status, nil
	}); err != nil {
		return DocumentIngestResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	filename := filepath.Base(input.DocPath)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	providerCount := input.EmbedProviders
	if providerCount <= 0 {
		providerCount = 1
	}
	state := newProviderState()
	result := DocumentIngestResult{SourceType: sourceType}

	status.CurrentStep = "compute_doc_id"
	status.Steps[status.CurrentStep] = "processing"
	var computeOut activities.ComputeDocIDOutput
	if err := workflow.ExecuteActivity(ctx, "ComputeDocIDActivity", activities.ComputeDocIDInput{DocPath: input.DocPath}).Get(ctx, &computeOut); err != nil {
		return DocumentIngestResult{}, err
	}
	status.DocID = computeOut.DocID
	result.DocID = computeOut.DocID
	status.Steps[status.CurrentStep] = "done"

	_ = workflow.ExecuteActivity(ctx, "UpdateDocStatusActivity", activities.UpdateDocStatusInput{
		DocID: computeOut.DocID, ProjectID: input.ProjectID, Filename: filename,
		SourceType: sourceType, Title: sourceTitle(sourceType), Status: "processing",
	}).Get(ctx, nil)

	failDoc := func(step, reason string) (DocumentIngestResult, error) {
		status.Status = "failed"
		status.FailReason = reason
		status.Steps[step] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateDocStatusActivity", activities.UpdateDocStatusInput{
			DocID: computeOut.DocID, ProjectID: input.ProjectID, Filename: filename,
			SourceType: sourceType, Title: sourceTitle(sourceType), Status: "failed", FailReason: reason,
		}).Get(ctx, nil)
		result.Status = "failed"
		return result, nil
	}

	status.CurrentStep = "extract_text"
	status.Steps[status.CurrentStep] = "processing"
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{DocPath: input.DocPath}).Get(ctx, &textOut); err != nil {
		if isNoTextError(err) {
			return failDoc(status.CurrentStep, "no extractable text found (OCR not enabled)")
		}
		return DocumentIngestResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"

	if sourceType == models.SourceTypeProject {
		status.CurrentStep = "extract_metadata"
		status.Steps[status.CurrentStep] = "processing"
		var metaOut activities.ExtractProjectMetadataOutput
		if err := workflow.ExecuteActivity(ctx, "ExtractProjectMetadataActivity", activities.ExtractProjectMetadataInput{ProjectID: input.ProjectID, Text: textOut.Text}).Get(ctx, &metaOut); err != nil {
			return DocumentIngestResult{}, err
		}
		result.Name = metaOut.Metadata.ProjectName
		result.Location = metaOut.Metadata.Location
		result.Owner = metaOut.Metadata.Owner
		result.Prime = metaOut.Metadata.PrimeContractor
		result.Activities = metaOut.Metadata.WorkActivities
		result.Hazards = metaOut.Metadata.Hazards
		status.Steps[status.CurrentStep] = "done"
	}

	status.CurrentStep = "chunk_document"
	status.Steps[status.CurrentStep] = "processing"
	var chunkOut activities.ChunkDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkDocumentActivity", activities.ChunkDocumentInput{
		DocID:         computeOut.DocID,
		ProjectID:     input.ProjectID,
		Text:          textOut.Text,
		TargetTokens:  input.TargetTokens,
		OverlapTokens: input.OverlapTokens,
		MinTokens:     input.MinTokens,
		Version:       defaultChunkVersion(input.ChunkVersion),
	}).Get(ctx, &chunkOut); err != nil {
		return DocumentIngestResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "embed_chunks"
	status.Steps[status.CurrentStep] = "processing"
	embedOut, err := callEmbedWithFailover(ctx, &state, providerCount, cooldown, activities.EmbedChunksInput{
		Operation: "embed",
		ProjectID: input.ProjectID,
		DocID:     computeOut.DocID,
		Input:     chunkOut.Chunks,
	}, status.RetryCounts, input.PreferredEmbedProviderIndex, input.StrictEmbedProvider)
	if err != nil {
		return DocumentIngestResult{}, err
	}
	status.Providers = append(status.Providers, embedOut.ProviderName)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "upsert_chunks"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpsertChunksActivity", activities.UpsertChunksInput{
		Chunks: chunkOut.Chunks, Vectors: embedOut.Vectors, EmbeddingVersion: defaultEmbedVersion(input.EmbedVersion),
	}).Get(ctx, nil); err != nil {
		if isInvalidTextEncodingError(err) {
			return failDoc(status.CurrentStep, "document contains invalid text encoding after extraction")
		}
		return DocumentIngestResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "write_artifacts"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "WriteDocArtifactsActivity", activities.WriteDocArtifactsInput{
		ProjectID: input.ProjectID,
		DocID:     computeOut.DocID,
		Metadata: map[string]any{
			"doc_id":      computeOut.DocID,
			"filename":    filename,
			"source_type": sourceType,
			"pages":       textOut.Pages,
			"chunk_count": len(chunkOut.Chunks),
		},
		Chunks:        chunkOut.Chunks,
		ProcessingLog: map[string]any{"status": "processed", "steps": status.Steps, "generated_at": workflow.Now(ctx)},
	}).Get(ctx, nil); err != nil {
		return DocumentIngestResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "mark_processed"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpdateDocStatusActivity", activities.UpdateDocStatusInput{
		DocID: computeOut.DocID, ProjectID: input.ProjectID, Filename: filename,
		SourceType: sourceType, Title: sourceTitle(sourceType), Status: "processed",
	}).Get(ctx, nil); err != nil {
		return DocumentIngestResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = "processed"
	result.Status = status.Status
	return result, nil
}

func PlanBuildWorkflow(ctx workflow.Context, input PlanBuildInput) (string, error) {
	logger := workflow.GetLogger(ctx)
	runID := input.RunID
	if strings.TrimSpace(runID) == "" {
		runID = workflow.GetInfo(ctx).WorkflowExecution.RunID
	}
	catalog := sections.Load()
	progress := PlanBuildProgress{
		RunID:         runID,
		ProjectID:     input.ProjectID,
		TotalSections: len(catalog.Sections),
		SectionStatus: map[string]string{},
		ExportBlocked: true,
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetPlanProgress, func() (PlanBuildProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	_ = workflow.ExecuteActivity(ctx, "CreatePlanRunActivity", activities.CreatePlanRunInput{RunID: runID, ProjectID: input.ProjectID}).Get(ctx, nil)

	var ctxOut activities.LoadProjectContextOutput
	if err := workflow.ExecuteActivity(ctx, "LoadProjectContextActivity", activities.LoadProjectContextInput{ProjectID: input.ProjectID}).Get(ctx, &ctxOut); err != nil {
		return "", err
	}
	pctx := ctxOut.Context

	var plansOut activities.MapSubPlansOutput
	if err := workflow.ExecuteActivity(ctx, "MapSubPlansActivity", activities.MapSubPlansInput{
		Activities: pctx.Activities,
		Hazards:    pctx.Hazards,
	}).Get(ctx, &plansOut); err != nil {
		return "", err
	}

	maxConcurrent := input.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	docSections := make([]models.DocumentSection, 0, len(catalog.Sections))
	for i := 0; i < len(catalog.Sections); i += maxConcurrent {
		end := i + maxConcurrent
		if end > len(catalog.Sections) {
			end = len(catalog.Sections)
		}
		futures := make([]workflow.Future, 0, end-i)
		for _, def := range catalog.Sections[i:end] {
			progress.SectionStatus[def.ID] = "generating"
			futures = append(futures, workflow.ExecuteActivity(ctx, "GenerateSectionActivity", activities.GenerateSectionInput{
				ProjectID: input.ProjectID,
				RunID:     runID,
				SectionID: def.ID,
				Context:   pctx,
			}))
		}
		for j, f := range futures {
			def := catalog.Sections[i+j]
			var genOut activities.GenerateSectionOutput
			err := f.Get(ctx, &genOut)
			switch {
			case err != nil:
				logger.Warn("section generation failed, using template fallback", "section", def.ID, "error", err)
				docSections = append(docSections, fallbackSection(def))
				progress.SectionStatus[def.ID] = "fallback"
			case genOut.Result.Insufficient:
				logger.Warn("section has insufficient evidence, using template fallback", "section", def.ID)
				docSections = append(docSections, fallbackSection(def))
				progress.SectionStatus[def.ID] = "insufficient"
			default:
				docSections = append(docSections, sectionFromResult(def, genOut.Result))
				progress.SectionStatus[def.ID] = "accepted"
			}
			progress.DoneSections++
		}
	}

	meta := models.MetadataState{
		ProjectName:     pctx.ProjectName,
		Location:        pctx.Location,
		Owner:           pctx.Owner,
		PrimeContractor: pctx.PrimeContractor,
		WorkActivities:  pctx.Activities,
		Hazards:         pctx.Hazards,
	}
	var valOut activities.ValidatePlanOutput
	if err := workflow.ExecuteActivity(ctx, "ValidatePlanActivity", activities.ValidatePlanInput{
		Metadata: meta,
		Sections: docSections,
	}).Get(ctx, &valOut); err != nil {
		return "", err
	}
	exportBlocked := !valOut.Validation.CanProceed
	progress.ExportBlocked = exportBlocked

	manifest := buildManifest(runID, input.ProjectID, docSections, plansOut.Plans, valOut.Validation, exportBlocked, workflow.Now(ctx))
	var manifestOut activities.WriteRunManifestOutput
	if err := workflow.ExecuteActivity(ctx, "WriteRunManifestActivity", activities.WriteRunManifestInput{
		ProjectID: input.ProjectID,
		RunID:     runID,
		Manifest:  manifest,
	}).Get(ctx, &manifestOut); err != nil {
		return "", err
	}

	runStatus := "completed"
	if exportBlocked {
		runStatus = "blocked"
		logger.Warn("plan export blocked by validation", "run_id", runID, "errors", len(valOut.Validation.Errors))
	} else {
		if err := workflow.ExecuteActivity(ctx, "WritePlanArtifactsActivity", activities.WritePlanArtifactsInput{
			ProjectID: input.ProjectID,
			RunID:     runID,
			Metadata:  meta,
			Sections:  docSections,
			Plans:     plansOut.Plans,
		}).Get(ctx, nil); err != nil {
			return "", err
		}
	}

	_ = workflow.ExecuteActivity(ctx, "UpdatePlanRunActivity", activities.UpdatePlanRunInput{
		RunID:         runID,
		Status:        runStatus,
		ExportBlocked: exportBlocked,
		ManifestPath:  manifestOut.Path,
	}).Get(ctx, nil)

	return manifestOut.Path, nil
}

// fallbackSection is the non-evidence path: every role paragraph carries a
// wrapped placeholder token, so validation keeps the export blocked until a
// human resolves the section.
func fallbackSection(def sections.SectionDefinition) models.DocumentSection {
	refs := generator.NormalizeReferences(def.EMRefs)
	firstRef := "the applicable paragraphs"
	if len(refs) > 0 {
		firstRef = refs[0]
	}
	return models.DocumentSection{
		SectionID: def.ID,
		Name:      def.Title,
		Paragraphs: []string{
			fmt.Sprintf("Purpose: «PLACEHOLDER: summarize the purpose of the %s program for this project.»", def.Title),
			fmt.Sprintf("Procedures: «PLACEHOLDER: describe the project procedures that implement EM 385-1-1 %s.»", firstRef),
			fmt.Sprintf("Responsibilities: «PLACEHOLDER: assign %s responsibilities by role.»", def.Title),
			"Forms and records: «PLACEHOLDER: identify the forms and logs used to document compliance.»",
			"References: EM 385-1-1 " + strings.Join(refs, "; ") + ".",
		},
		Insufficient:     true,
		FallbackTemplate: true,
	}
}

func sectionFromResult(def sections.SectionDefinition, result models.SectionGenerationResult) models.DocumentSection {
	project := 0
	for _, b := range result.Evidence {
		if !generator.IsRegulationSource(b.SourceLabel) {
			project++
		}
	}
	return models.DocumentSection{
		SectionID:      def.ID,
		Name:           def.Title,
		Paragraphs:     strings.Split(result.Text, "\n\n"),
		Citations:      result.Citations,
		Insufficient:   result.Insufficient,
		RegulationOnly: project == 0,
	}
}

func buildManifest(runID, projectID string, docSections []models.DocumentSection, plans []activities.SubPlanStatus, validation models.ValidationState, exportBlocked bool, now time.Time) map[string]any {
	sectionRows := make([]map[string]any, 0, len(docSections))
	regulationOnly := make([]string, 0)
	placeholderCount := 0
	for _, sec := range docSections {
		text := strings.Join(sec.Paragraphs, "\n")
		placeholders := validate.FindPlaceholders(text)
		placeholderCount += len(placeholders)
		if sec.RegulationOnly {
			regulationOnly = append(regulationOnly, sec.Name)
		}
		sectionRows = append(sectionRows, map[string]any{
			"section_id":        sec.SectionID,
			"name":              sec.Name,
			"citations":         len(sec.Citations),
			"insufficient":      sec.Insufficient,
			"fallback_template": sec.FallbackTemplate,
			"regulation_only":   sec.RegulationOnly,
			"placeholders":      len(placeholders),
		})
	}
	return map[string]any{
		"run_id":                   runID,
		"project_id":               projectID,
		"generated_at":             now,
		"export_blocked":           exportBlocked,
		"sections":                 sectionRows,
		"regulation_only_sections": regulationOnly,
		"placeholder_count":        placeholderCount,
		"sub_plans":                plans,
		"validation": map[string]any{
			"errors":      validation.Errors,
			"warnings":    validation.Warnings,
			"can_proceed": validation.CanProceed,
		},
	}
}

func AHABuildWorkflow(ctx workflow.Context, input AHABuildInput) (string, error) {
	progress := AHAProgress{
		RunID:          input.RunID,
		ProjectID:      input.ProjectID,
		TotalTasks:     len(input.Activities),
		ActivityStatus: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetAHAProgress, func() (AHAProgress, error) { return progress, nil }); err != nil {
		return "", err
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	embedProviders := defaultCount(input.EmbedProviders)
	llmProviders := defaultCount(input.LLMProviders)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	topK := input.RetrievalTopK
	if topK <= 0 {
		topK = 8
	}
	embedState := newProviderState()
	llmState := newProviderState()

	report := strings.Builder{}
	report.WriteString("# Activity Hazard Analysis\n\n")
	report.WriteString("Project: `" + input.ProjectID + "`\n\n")

	for _, act := range input.Activities {
		progress.ActivityStatus[act] = "retrieving"
		eq, err := callEmbedQueryWithFailover(ctx, &embedState, embedProviders, cooldown, activities.EmbedQueryInput{
			Operation: "aha_query_embed",
			Text:      act + " hazards controls inspection requirements",
		}, nil)
		if err != nil {
			progress.ActivityStatus[act] = "failed"
			continue
		}
		var retrieved activities.SearchChunksOutput
		if err := workflow.ExecuteActivity(ctx, "SearchChunksActivity", activities.SearchChunksInput{
			ProjectID:        input.ProjectID,
			QueryVec:         eq.Vector,
			TopK:             topK,
			EmbeddingVersion: defaultEmbedVersion(input.EmbedVersion),
		}).Get(ctx, &retrieved); err != nil {
			progress.ActivityStatus[act] = "failed"
			continue
		}
		progress.ActivityStatus[act] = "drafting"

		contextWindow := toEvidenceContext(retrieved.Results)
		rowsInput := activities.LLMGenerateInput{
			Operation: "aha",
			ProjectID: input.ProjectID,
			RunID:     input.RunID,
			Prompt:    "Draft activity hazard analysis rows (hazard, controls, RAC) for: " + act,
			Context:   contextWindow,
		}
		rows, errType, rowsErr := callLLMWithFailover(ctx, &llmState, llmProviders, cooldown, rowsInput, nil)
		if rowsErr != nil && errType == string(providers.ErrorContext) {
			reduced := contextWindow
			if len(reduced) > 3 {
				reduced = reduced[:3]
			}
			rowsInput.Context = reduced
			rows, _, rowsErr = callLLMWithFailover(ctx, &llmState, llmProviders, cooldown, rowsInput, nil)
		}

		report.WriteString("## " + act + "\n\n")
		if rowsErr != nil || strings.TrimSpace(rows.Text) == "" {
			report.WriteString("No hazard analysis rows generated.\n\n")
		} else {
			report.WriteString(rows.Text + "\n\n")
		}
		report.WriteString("### Evidence\n")
		for _, c := range retrieved.Results {
			report.WriteString("- [" + c.SourceLabel + ":" + c.ChunkID + "] score=" + formatScore(c.Score) + "\n")
		}
		report.WriteString("\n")
		progress.ActivityStatus[act] = "done"
		progress.DoneTasks++
	}

	var reportOut activities.WriteAHAReportOutput
	if err := workflow.ExecuteActivity(ctx, "WriteAHAReportActivity", activities.WriteAHAReportInput{
		ProjectID: input.ProjectID,
		RunID:     input.RunID,
		Report:    report.String(),
	}).Get(ctx, &reportOut); err != nil {
		return "", err
	}
	return reportOut.Path, nil
}

func BackfillWorkflow(ctx workflow.Context, input BackfillInput) (string, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	info := workflow.GetInfo(ctx)
	runID := info.WorkflowExecution.RunID
	manifest := map[string]any{
		"run_id":     runID,
		"mode":       input.Mode,
		"project_id": input.ProjectID,
		"versions":   map[string]any{"chunk": defaultChunkVersion(input.ChunkVersion), "embed": defaultEmbedVersion(input.EmbedVersion)},
		"started_at": workflow.Now(ctx),
	}

	switch strings.ToUpper(strings.TrimSpace(input.Mode)) {
	case "RETRY_FAILED_DOCS":
		var failed activities.ListFailedDocsOutput
		if err := workflow.ExecuteActivity(ctx, "ListFailedDocsActivity", activities.ListFailedDocsInput{ProjectID: input.ProjectID}).Get(ctx, &failed); err != nil {
			return "", err
		}
		retried := 0
		for _, d := range failed.Docs {
			var out DocumentIngestResult
			if err := workflow.ExecuteChildWorkflow(ctx, DocumentIngestWorkflow, DocumentIngestInput{
				ProjectID:                   input.ProjectID,
				DocPath:                     pathForBackfill(input, d.Filename),
				ChunkVersion:                defaultChunkVersion(input.ChunkVersion),
				EmbedVersion:                defaultEmbedVersion(input.EmbedVersion),
				EmbedProviders:              defaultCount(input.EmbedProviders),
				PreferredEmbedProviderIndex: input.PreferredEmbedProviderIndex,
				StrictEmbedProvider:         input.StrictEmbedProvider,
				CooldownSeconds:             defaultSeconds(input.CooldownSeconds, 900),
			}).Get(ctx, &out); err == nil {
				retried++
			}
		}
		manifest["retried_failed_docs"] = retried
	case "REEMBED_ALL_DOCS":
		var all activities.ListProjectDocsOutput
		if err := workflow.ExecuteActivity(ctx, "ListProjectDocsActivity", activities.ListProjectDocsInput{ProjectID: input.ProjectID}).Get(ctx, &all); err != nil {
			return "", err
		}
		processed := 0
		for _, d := range all.Docs {
			if strings.TrimSpace(d.Filename) == "" {
				continue
			}
			var out DocumentIngestResult
			if err := workflow.ExecuteChildWorkflow(ctx, DocumentIngestWorkflow, DocumentIngestInput{
				ProjectID:                   input.ProjectID,
				DocPath:                     pathForBackfill(input, d.Filename),
				ChunkVersion:                defaultChunkVersion(input.ChunkVersion),
				EmbedVersion:                defaultEmbedVersion(input.EmbedVersion),
				EmbedProviders:              defaultCount(input.EmbedProviders),
				PreferredEmbedProviderIndex: input.PreferredEmbedProviderIndex,
				StrictEmbedProvider:         input.StrictEmbedProvider,
				CooldownSeconds:             defaultSeconds(input.CooldownSeconds, 900),
			}).Get(ctx, &out); err == nil {
				processed++
			}
		}
		manifest["reembedded_docs"] = processed
		manifest["total_docs_seen"] = len(all.Docs)
	case "REBUILD_PLAN":
		run := input.RunID
		if strings.TrimSpace(run) == "" {
			run = sanitizeID(fmt.Sprintf("%s-%d", input.ProjectID, workflow.Now(ctx).Unix()))
		}
		var manifestPath string
		if err := workflow.ExecuteChildWorkflow(ctx, PlanBuildWorkflow, PlanBuildInput{
			RunID:           run,
			ProjectID:       input.ProjectID,
			CooldownSeconds: defaultSeconds(input.CooldownSeconds, 900),
		}).Get(ctx, &manifestPath); err != nil {
			return "", err
		}
		manifest["rebuilt_run_id"] = run
		manifest["manifest_path"] = manifestPath
	default:
		return "", fmt.Errorf("unsupported backfill mode: %s", input.Mode)
	}

	var out activities.WriteRunManifestOutput
	if err := workflow.ExecuteActivity(ctx, "WriteRunManifestActivity", activities.WriteRunManifestInput{
		ProjectID: input.ProjectID,
		RunID:     "backfill-" + sanitizeID(runID),
		Manifest:  manifest,
	}).Get(ctx, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedChunksInput, retryCounts map[string]int, preferredIdx int, strict bool) (activities.EmbedChunksOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	maxAttempts := providerCount * 4
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	if strict && preferredIdx >= 0 {
		maxAttempts = 4
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := 0
		if strict && preferredIdx >= 0 {
			idx = preferredIdx
		} else if preferredIdx >= 0 {
			idx = (preferredIdx + attempt) % providerCount
		} else {
			idx = attempt % providerCount
		}
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedChunksOutput
		err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, ProjectID: input.ProjectID, ProviderName: out.ProviderName, Model: out.Model, RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "ok"}).Get(ctx, nil)
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, ProjectID: input.ProjectID, ProviderName: fmt.Sprintf("provider-%d", idx), RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				if !strict {
					attempt--
				}
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				if !strict {
					attempt--
				}
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
		if strict {
			continue
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedChunksOutput{}, lastErr
}

func callEmbedQueryWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedQueryInput, retryCounts map[string]int) (activities.EmbedQueryOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedQueryOutput
		err := workflow.ExecuteActivity(ctx, "EmbedQueryActivity", input).Get(ctx, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		key := fmt.Sprintf("eq-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate, providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed query providers exhausted")
	}
	return activities.EmbedQueryOutput{}, lastErr
}

func callLLMWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.LLMGenerateInput, retryCounts map[string]int) (activities.LLMGenerateOutput, string, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.LLMGenerateOutput
		err := workflow.ExecuteActivity(ctx, "LLMGenerateActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, ProjectID: input.ProjectID, RunID: input.RunID, ProviderName: out.ProviderName, Model: out.Model, RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "ok"}).Get(ctx, nil)
			return out, "", nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, ProjectID: input.ProjectID, RunID: input.RunID, ProviderName: fmt.Sprintf("provider-%d", idx), RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		key := fmt.Sprintf("llm-%s-%d", input.Operation, idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		case providers.ErrorContext:
			return activities.LLMGenerateOutput{}, string(providers.ErrorContext), err
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return activities.LLMGenerateOutput{}, string(providers.ClassifyError(lastErr)), lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func defaultChunkVersion(v string) string {
	if strings.TrimSpace(v) == "" {
		return "v1"
	}
	return v
}

func defaultEmbedVersion(v string) string {
	if strings.TrimSpace(v) == "" {
		return "v1"
	}
	return v
}

// inferSourceType classifies a source path as regulatory corpus or project
// material. Regulation files live under a regulation/ directory or carry the
// EM 385 name.
func inferSourceType(path string) string {
	p := strings.ToLower(filepath.ToSlash(path))
	if strings.Contains(p, "/regulation/") || strings.HasPrefix(p, "regulation/") {
		return models.SourceTypeRegulation
	}
	name := strings.ReplaceAll(strings.ReplaceAll(filepath.Base(p), "_", ""), "-", "")
	if strings.Contains(name, "em385") {
		return models.SourceTypeRegulation
	}
	return models.SourceTypeProject
}

func sourceTitle(sourceType string) string {
	if sourceType == models.SourceTypeRegulation {
		return "EM 385-1-1"
	}
	return ""
}

func isNoTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func isInvalidTextEncodingError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "invalid byte sequence") || strings.Contains(e, "sqlstate 22021")
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func toEvidenceContext(results []activities.SearchChunk) []string {
	out := make([]string, 0, len(results))
	for _, c := range results {
		text := c.Text
		if text == "" {
			text = c.Snippet
		}
		out = append(out, fmt.Sprintf("[%s:%s] %s", c.SourceLabel, c.ChunkID, text))
	}
	return out
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func defaultSeconds(n int, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

func pathForBackfill(input BackfillInput, filename string) string {
	base := strings.TrimSpace(input.DataInRoot)
	if base == "" {
		base = "./data/in"
	}
	return filepath.Join(base, input.ProjectID, filename)
}
