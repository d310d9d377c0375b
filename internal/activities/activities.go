package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"safeplan/internal/chunker"
	"safeplan/internal/config"
	"safeplan/internal/extract"
	"safeplan/internal/generator"
	"safeplan/internal/models"
	"safeplan/internal/providers"
	"safeplan/internal/retrieval"
	"safeplan/internal/sanitize"
	"safeplan/internal/sections"
	"safeplan/internal/storage"
	"safeplan/internal/util"
	"safeplan/internal/validate"
	"safeplan/internal/vector"

	"github.com/ledongthuc/pdf"
)

type Activities struct {
	cfg          config.Config
	projectRepo  *storage.ProjectRepo
	documentRepo *storage.DocumentRepo
	chunkRepo    *storage.ChunkRepo
	runRepo      *storage.RunRepo
	auditRepo    *storage.AuditRepo
	searcher     *vector.Searcher
	providers    *providers.Manager
	catalog      *sections.Catalog
	generator    *generator.Generator
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	searcher := vector.NewSearcher(db.Pool)
	retriever := retrieval.NewRetriever(searcher, &managerEmbedder{providers: pm, dim: cfg.EmbedDim}, retrieval.JaccardMMR{})
	return &Activities{
		cfg:          cfg,
		projectRepo:  storage.NewProjectRepo(db),
		documentRepo: storage.NewDocumentRepo(db),
		chunkRepo:    storage.NewChunkRepo(db),
		runRepo:      storage.NewRunRepo(db),
		auditRepo:    storage.NewAuditRepo(db),
		searcher:     searcher,
		providers:    pm,
		catalog:      sections.Load(),
		generator:    generator.New(retriever, pm.HasLiveLLM()),
	}, nil
}

// managerEmbedder adapts the provider manager to the retriever's query
// embedder, walking providers in preferred order until one answers.
type managerEmbedder struct {
	providers *providers.Manager
	dim       int
}

func (e *managerEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for _, idx := range e.providers.PreferredEmbedOrder() {
		p, ref := e.providers.EmbedProviderByIndex(idx)
		vecs, _, err := p.Embed(ctx, providers.EmbedRequest{
			Operation: "section_query_embed",
			Inputs:    []string{text},
			Dimension: e.dim,
		})
		if err != nil {
			lastErr = fmt.Errorf("embed query via %s: %w", ref.Raw, err)
			continue
		}
		if len(vecs) == 0 {
			lastErr = fmt.Errorf("embed query via %s: empty vectors", ref.Raw)
			continue
		}
		return vecs[0], nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no embedding providers configured")
	}
	return nil, lastErr
}

var sourceExtensions = map[string]bool{".pdf": true, ".txt": true, ".md": true}

func (a *Activities) ListSourceDocsActivity(ctx context.Context, in ListSourceDocsInput) (ListSourceDocsOutput, error) {
	_ = ctx
	paths := make([]string, 0)
	err := filepath.WalkDir(in.InputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return ListSourceDocsOutput{}, fmt.Errorf("walk input dir: %w", err)
	}
	sort.Strings(paths)
	return ListSourceDocsOutput{Paths: paths}, nil
}

func (a *Activities) ComputeDocIDActivity(ctx context.Context, in ComputeDocIDInput) (ComputeDocIDOutput, error) {
	_ = ctx
	f, err := os.Open(in.DocPath)
	if err != nil {
		return ComputeDocIDOutput{}, fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()
	id, err := util.SHA256HexFromReader(f)
	if err != nil {
		return ComputeDocIDOutput{}, fmt.Errorf("hash file: %w", err)
	}
	return ComputeDocIDOutput{DocID: id}, nil
}

// ExtractTextActivity pulls the text layer out of a source document. PDF
// pages are sanitized individually and rejoined with reserved page markers so
// the chunker can track page provenance; plain-text sources pass through the
// sanitizer whole.
func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	if strings.EqualFold(filepath.Ext(in.DocPath), ".pdf") {
		return extractPDFText(in.DocPath)
	}

	raw, err := os.ReadFile(in.DocPath)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read source file: %w", err)
	}
	text := sanitize.Sanitize(string(raw))
	if text == "" {
		return ExtractTextOutput{}, util.ErrNoExtractableText
	}
	return ExtractTextOutput{Text: text, Pages: 1}, nil
}

func extractPDFText(path string) (ExtractTextOutput, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		raw, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		text := sanitize.Sanitize(raw)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[[PAGE %d]]\n%s\n", i, text)
		pages++
	}
	if pages == 0 {
		return ExtractTextOutput{}, util.ErrNoExtractableText
	}
	return ExtractTextOutput{Text: strings.TrimSpace(b.String()), Pages: pages}, nil
}

func (a *Activities) ExtractProjectMetadataActivity(ctx context.Context, in ExtractProjectMetadataInput) (ExtractProjectMetadataOutput, error) {
	_ = ctx
	meta := extract.ExtractProjectMetadata(in.Text)
	return ExtractProjectMetadataOutput{Metadata: models.MetadataState{
		ProjectName:     meta.ProjectName,
		Location:        meta.Location,
		Owner:           meta.Owner,
		PrimeContractor: meta.PrimeContractor,
		WorkActivities:  extract.DetectActivities(in.Text),
		Hazards:         extract.DetectHazards(in.Text),
	}}, nil
}

func (a *Activities) ChunkDocumentActivity(ctx context.Context, in ChunkDocumentInput) (ChunkDocumentOutput, error) {
	_ = ctx
	opts := chunker.Options{
		TargetTokens:  in.TargetTokens,
		OverlapTokens: in.OverlapTokens,
		MinTokens:     in.MinTokens,
	}
	if opts.TargetTokens <= 0 {
		opts.TargetTokens = a.cfg.ChunkTargetTokens
	}
	if opts.OverlapTokens <= 0 {
		opts.OverlapTokens = a.cfg.ChunkOverlapTokens
	}
	if opts.MinTokens <= 0 {
		opts.MinTokens = a.cfg.ChunkMinTokens
	}

	raw := chunker.Split(in.Text, opts)
	chunks := make([]ChunkItem, 0, len(raw))
	for idx, c := range raw {
		chunkHash := util.SHA256Hex([]byte(c.Text))
		chunkID := util.SHA256Hex([]byte(fmt.Sprintf("%s:%d:%s:%s", in.DocID, idx, chunkHash, in.Version)))
		chunks = append(chunks, ChunkItem{
			ChunkID:      chunkID,
			DocID:        in.DocID,
			ProjectID:    in.ProjectID,
			ChunkIndex:   idx,
			Text:         c.Text,
			SectionTitle: c.SectionTitle,
			SectionPath:  strings.Join(c.HeadingPath, " > "),
			Division:     c.Division,
			PageStart:    c.PageStart,
			PageEnd:      c.PageEnd,
		})
	}
	return ChunkDocumentOutput{Chunks: chunks}, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	inputs := make([]string, 0, len(in.Input))
	for _, c := range in.Input {
		inputs = append(inputs, c.Text)
	}
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	return EmbedChunksOutput{
		Vectors:      vectors,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) UpsertChunksActivity(ctx context.Context, in UpsertChunksInput) error {
	records := make([]storage.ChunkRecord, 0, len(in.Chunks))
	for i, c := range in.Chunks {
		var embedding *string
		if i < len(in.Vectors) && len(in.Vectors[i]) > 0 {
			lit := vector.ToLiteral(in.Vectors[i])
			embedding = &lit
		}
		records = append(records, storage.ChunkRecord{
			ChunkID:          c.ChunkID,
			DocID:            c.DocID,
			ProjectID:        c.ProjectID,
			ChunkIndex:       c.ChunkIndex,
			Text:             util.ScrubControlChars(c.Text),
			SectionTitle:     c.SectionTitle,
			SectionPath:      c.SectionPath,
			Division:         c.Division,
			PageStart:        pagePtr(c.PageStart),
			PageEnd:          pagePtr(c.PageEnd),
			EmbeddingVersion: in.EmbeddingVersion,
			EmbeddingVector:  embedding,
		})
	}
	return a.chunkRepo.UpsertChunks(ctx, records)
}

func pagePtr(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func (a *Activities) EmbedQueryActivity(ctx context.Context, in EmbedQueryInput) (EmbedQueryOutput, error) {
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    []string{in.Text},
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedQueryOutput{}, err
	}
	if len(vectors) == 0 {
		return EmbedQueryOutput{}, fmt.Errorf("embedding provider returned empty vectors")
	}
	return EmbedQueryOutput{Vector: vectors[0], ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) SearchChunksActivity(ctx context.Context, in SearchChunksInput) (SearchChunksOutput, error) {
	results, err := a.searcher.SearchChunks(ctx, in.ProjectID, in.QueryVec, in.TopK, vector.SearchFilters{
		SourceType:       in.SourceType,
		EmbeddingVersion: in.EmbeddingVersion,
	})
	if err != nil {
		return SearchChunksOutput{}, err
	}
	out := make([]SearchChunk, 0, len(results))
	for _, r := range results {
		out = append(out, SearchChunk{
			ChunkID:      r.ChunkID,
			DocID:        r.DocID,
			SourceLabel:  r.SourceLabel,
			SectionTitle: r.SectionTitle,
			PageStart:    r.PageStart,
			Snippet:      r.Snippet,
			Score:        r.Score,
			Text:         r.ChunkText,
		})
	}
	return SearchChunksOutput{Results: out}, nil
}

// GenerateSectionActivity runs the full per-section pipeline in-process:
// retrieval, evidence extraction, gated composition, contamination pass.
// Retrieval backend failures come back as activity errors; insufficiency is a
// normal result.
func (a *Activities) GenerateSectionActivity(ctx context.Context, in GenerateSectionInput) (GenerateSectionOutput, error) {
	def, ok := a.catalog.ByID(in.SectionID)
	if !ok {
		return GenerateSectionOutput{}, fmt.Errorf("unknown section id: %s", in.SectionID)
	}
	result, err := a.generator.GenerateSection(ctx, in.ProjectID, def, in.Context.toProjectContext())
	if err != nil {
		return GenerateSectionOutput{}, err
	}
	return GenerateSectionOutput{Result: result}, nil
}

func (r ProjectContextRecord) toProjectContext() sections.ProjectContext {
	return sections.ProjectContext{
		ProjectName:     r.ProjectName,
		Location:        r.Location,
		Owner:           r.Owner,
		PrimeContractor: r.PrimeContractor,
		Activities:      r.Activities,
		Hazards:         r.Hazards,
	}
}

func (a *Activities) ValidatePlanActivity(ctx context.Context, in ValidatePlanInput) (ValidatePlanOutput, error) {
	_ = ctx
	state := validate.Validate(a.catalog, in.Metadata, models.ProcessingState{Sections: in.Sections})
	return ValidatePlanOutput{Validation: state}, nil
}

func (a *Activities) MapSubPlansActivity(ctx context.Context, in MapSubPlansInput) (MapSubPlansOutput, error) {
	_ = ctx
	statuses := a.catalog.MapToPlans(in.Activities, in.Hazards)
	out := MapSubPlansOutput{Plans: make([]SubPlanStatus, 0, len(statuses))}
	for _, s := range statuses {
		out.Plans = append(out.Plans, SubPlanStatus{
			PlanName: s.PlanName,
			Status:   s.Status,
			State:    s.State,
			Triggers: s.Triggers,
		})
	}
	return out, nil
}

func (a *Activities) LLMGenerateActivity(ctx context.Context, in LLMGenerateInput) (LLMGenerateOutput, error) {
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation: in.Operation,
		Prompt:    in.Prompt,
		Context:   in.Context,
	})
	if err != nil {
		return LLMGenerateOutput{}, fmt.Errorf("llm generate via %s failed: %w", ref.Raw, err)
	}
	return LLMGenerateOutput{
		Text:         resp.Text,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) UpdateDocStatusActivity(ctx context.Context, in UpdateDocStatusInput) error {
	return a.documentRepo.UpsertDoc(ctx, models.SourceDoc{
		DocID:      in.DocID,
		ProjectID:  in.ProjectID,
		Filename:   in.Filename,
		SourceType: in.SourceType,
		Title:      in.Title,
		Status:     in.Status,
		FailReason: in.FailReason,
	})
}

func (a *Activities) ListFailedDocsActivity(ctx context.Context, in ListFailedDocsInput) (ListFailedDocsOutput, error) {
	docs, err := a.documentRepo.ListFailedDocs(ctx, in.ProjectID)
	if err != nil {
		return ListFailedDocsOutput{}, err
	}
	out := ListFailedDocsOutput{Docs: make([]FailedDoc, 0, len(docs))}
	for _, d := range docs {
		out.Docs = append(out.Docs, FailedDoc{DocID: d.DocID, Filename: d.Filename})
	}
	return out, nil
}

func (a *Activities) ListProjectDocsActivity(ctx context.Context, in ListProjectDocsInput) (ListProjectDocsOutput, error) {
	docs, err := a.documentRepo.ListDocsByProject(ctx, in.ProjectID)
	if err != nil {
		return ListProjectDocsOutput{}, err
	}
	out := ListProjectDocsOutput{Docs: make([]ProjectDoc, 0, len(docs))}
	for _, d := range docs {
		out.Docs = append(out.Docs, ProjectDoc{
			DocID:      d.DocID,
			Filename:   d.Filename,
			SourceType: d.SourceType,
			Status:     d.Status,
			FailReason: d.FailReason,
		})
	}
	return out, nil
}

func (a *Activities) UpdateProjectMetadataActivity(ctx context.Context, in UpdateProjectMetadataInput) error {
	return a.projectRepo.UpdateMetadata(ctx, in.ProjectID, in.Metadata)
}

func (a *Activities) WriteProjectContextActivity(ctx context.Context, in WriteProjectContextInput) error {
	_ = ctx
	path := filepath.Join(a.cfg.DataOutRoot, in.ProjectID, "project_context.json")
	return util.WriteJSONAtomic(path, in.Context)
}

// LoadProjectContextActivity merges the project row in Postgres with the
// context artifact written at ingest. Either source may be missing; plan
// builds proceed on what exists and the validator decides whether the gaps
// block export.
func (a *Activities) LoadProjectContextActivity(ctx context.Context, in LoadProjectContextInput) (LoadProjectContextOutput, error) {
	out := LoadProjectContextOutput{}
	if p, err := a.projectRepo.GetProject(ctx, in.ProjectID); err == nil {
		out.Context.ProjectName = p.Name
		out.Context.Location = p.Location
		out.Context.Owner = p.Owner
		out.Context.PrimeContractor = p.PrimeContractor
	}

	path := filepath.Join(a.cfg.DataOutRoot, in.ProjectID, "project_context.json")
	var stored ProjectContextRecord
	if err := util.ReadJSON(path, &stored); err == nil {
		if out.Context.ProjectName == "" {
			out.Context.ProjectName = stored.ProjectName
		}
		if out.Context.Location == "" {
			out.Context.Location = stored.Location
		}
		if out.Context.Owner == "" {
			out.Context.Owner = stored.Owner
		}
		if out.Context.PrimeContractor == "" {
			out.Context.PrimeContractor = stored.PrimeContractor
		}
		out.Context.Activities = stored.Activities
		out.Context.Hazards = stored.Hazards
	}
	return out, nil
}

func (a *Activities) WriteIngestSummaryActivity(ctx context.Context, in WriteIngestSummaryInput) error {
	_ = ctx
	path := filepath.Join(a.cfg.DataOutRoot, in.ProjectID, "ingest_summary.json")
	return util.WriteJSONAtomic(path, in.Summary)
}

func (a *Activities) WriteDocArtifactsActivity(ctx context.Context, in WriteDocArtifactsInput) error {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, in.ProjectID, "docs", in.DocID)
	if err := util.EnsureDir(base); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, "metadata.json"), in.Metadata); err != nil {
		return err
	}
	rows := make([]any, 0, len(in.Chunks))
	for _, c := range in.Chunks {
		rows = append(rows, c)
	}
	if err := util.WriteJSONLinesAtomic(filepath.Join(base, "chunks.jsonl"), rows); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(base, "processing_log.json"), in.ProcessingLog)
}

func (a *Activities) CreatePlanRunActivity(ctx context.Context, in CreatePlanRunInput) error {
	return a.runRepo.CreateRun(ctx, in.RunID, in.ProjectID)
}

func (a *Activities) UpdatePlanRunActivity(ctx context.Context, in UpdatePlanRunInput) error {
	return a.runRepo.UpdateRun(ctx, in.RunID, in.Status, in.ExportBlocked, in.ManifestPath)
}

func (a *Activities) WriteRunManifestActivity(ctx context.Context, in WriteRunManifestInput) (WriteRunManifestOutput, error) {
	_ = ctx
	path := filepath.Join(a.cfg.DataOutRoot, in.ProjectID, "runs", in.RunID, "manifest.json")
	if err := util.WriteJSONAtomic(path, in.Manifest); err != nil {
		return WriteRunManifestOutput{}, err
	}
	return WriteRunManifestOutput{Path: path}, nil
}

// WritePlanArtifactsActivity writes the exportable plan files. The workflow
// only calls it when validation passed; the manifest is written separately and
// unconditionally.
func (a *Activities) WritePlanArtifactsActivity(ctx context.Context, in WritePlanArtifactsInput) (WritePlanArtifactsOutput, error) {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, in.ProjectID, "runs", in.RunID)
	if err := util.EnsureDir(base); err != nil {
		return WritePlanArtifactsOutput{}, err
	}

	planPath := filepath.Join(base, "plan.json")
	if err := util.WriteJSONAtomic(planPath, map[string]any{
		"run_id":    in.RunID,
		"metadata":  in.Metadata,
		"sections":  in.Sections,
		"sub_plans": in.Plans,
	}); err != nil {
		return WritePlanArtifactsOutput{}, err
	}

	rows := make([]any, 0, len(in.Sections))
	for _, s := range in.Sections {
		rows = append(rows, s)
	}
	sectionsPath := filepath.Join(base, "sections.jsonl")
	if err := util.WriteJSONLinesAtomic(sectionsPath, rows); err != nil {
		return WritePlanArtifactsOutput{}, err
	}
	return WritePlanArtifactsOutput{Paths: []string{planPath, sectionsPath}}, nil
}

func (a *Activities) WriteAHAReportActivity(ctx context.Context, in WriteAHAReportInput) (WriteAHAReportOutput, error) {
	_ = ctx
	path := filepath.Join(a.cfg.DataOutRoot, in.ProjectID, "aha", in.RunID, "aha.md")
	if err := util.WriteTextAtomic(path, in.Report); err != nil {
		return WriteAHAReportOutput{}, err
	}
	return WriteAHAReportOutput{Path: path}, nil
}

// LogLLMCallActivity records a provider call in the audit table. Audit
// failures never abort a pipeline run.
func (a *Activities) LogLLMCallActivity(ctx context.Context, in LogLLMCallInput) error {
	util.BestEffort("llm audit insert", func() error {
		return a.auditRepo.Insert(ctx, storage.LLMCallRecord{
			CallID:       in.CallID,
			Operation:    in.Operation,
			ProjectID:    in.ProjectID,
			RunID:        in.RunID,
			ProviderName: in.ProviderName,
			Model:        in.Model,
			RequestID:    in.RequestID,
			Status:       in.Status,
			ErrorType:    in.ErrorType,
		})
	})
	return nil
}
