package activities

import "safeplan/internal/models"

type ListSourceDocsInput struct {
	InputDir string `json:"input_dir"`
}

type ListSourceDocsOutput struct {
	Paths []string `json:"paths"`
}

type ComputeDocIDInput struct {
	DocPath string `json:"doc_path"`
}

type ComputeDocIDOutput struct {
	DocID string `json:"doc_id"`
}

type ExtractTextInput struct {
	DocPath string `json:"doc_path"`
}

type ExtractTextOutput struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

type ExtractProjectMetadataInput struct {
	ProjectID string `json:"project_id"`
	Text      string `json:"text"`
}

type ExtractProjectMetadataOutput struct {
	Metadata models.MetadataState `json:"metadata"`
}

type ChunkDocumentInput struct {
	DocID         string `json:"doc_id"`
	ProjectID     string `json:"project_id"`
	Text          string `json:"text"`
	TargetTokens  int    `json:"target_tokens"`
	OverlapTokens int    `json:"overlap_tokens"`
	MinTokens     int    `json:"min_tokens"`
	Version       string `json:"version"`
}

type ChunkItem struct {
	ChunkID      string `json:"chunk_id"`
	DocID        string `json:"doc_id"`
	ProjectID    string `json:"project_id"`
	ChunkIndex   int    `json:"chunk_index"`
	Text         string `json:"text"`
	SectionTitle string `json:"section_title,omitempty"`
	SectionPath  string `json:"section_path,omitempty"`
	Division     string `json:"division,omitempty"`
	PageStart    int    `json:"page_start,omitempty"`
	PageEnd      int    `json:"page_end,omitempty"`
}

type ChunkDocumentOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type EmbedChunksInput struct {
	Operation     string      `json:"operation"`
	ProjectID     string      `json:"project_id"`
	DocID         string      `json:"doc_id"`
	ProviderIndex int         `json:"provider_index"`
	Input         []ChunkItem `json:"input"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type UpsertChunksInput struct {
	Chunks           []ChunkItem `json:"chunks"`
	Vectors          [][]float32 `json:"vectors,omitempty"`
	EmbeddingVersion string      `json:"embedding_version"`
}

type EmbedQueryInput struct {
	Operation     string `json:"operation"`
	Text          string `json:"text"`
	ProviderIndex int    `json:"provider_index"`
}

type EmbedQueryOutput struct {
	Vector       []float32 `json:"vector"`
	ProviderName string    `json:"provider_name"`
	Model        string    `json:"model"`
}

type SearchChunksInput struct {
	ProjectID        string    `json:"project_id"`
	QueryVec         []float32 `json:"query_vec"`
	TopK             int       `json:"top_k"`
	SourceType       string    `json:"source_type,omitempty"`
	EmbeddingVersion string    `json:"embedding_version,omitempty"`
}

type SearchChunk struct {
	ChunkID      string  `json:"chunk_id"`
	DocID        string  `json:"doc_id"`
	SourceLabel  string  `json:"source_label"`
	SectionTitle string  `json:"section_title,omitempty"`
	PageStart    *int    `json:"page_start,omitempty"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
	Text         string  `json:"text,omitempty"`
}

type SearchChunksOutput struct {
	Results []SearchChunk `json:"results"`
}

// ProjectContextRecord is the workflow-serializable form of
// sections.ProjectContext.
type ProjectContextRecord struct {
	ProjectName     string   `json:"project_name"`
	Location        string   `json:"location"`
	Owner           string   `json:"owner"`
	PrimeContractor string   `json:"prime_contractor"`
	Activities      []string `json:"activities,omitempty"`
	Hazards         []string `json:"hazards,omitempty"`
}

type GenerateSectionInput struct {
	ProjectID string               `json:"project_id"`
	RunID     string               `json:"run_id"`
	SectionID string               `json:"section_id"`
	Context   ProjectContextRecord `json:"context"`
}

type GenerateSectionOutput struct {
	Result models.SectionGenerationResult `json:"result"`
}

type ValidatePlanInput struct {
	Metadata models.MetadataState     `json:"metadata"`
	Sections []models.DocumentSection `json:"sections"`
}

type ValidatePlanOutput struct {
	Validation models.ValidationState `json:"validation"`
}

type MapSubPlansInput struct {
	Activities []string `json:"activities"`
	Hazards    []string `json:"hazards"`
}

type SubPlanStatus struct {
	PlanName string   `json:"plan_name"`
	Status   string   `json:"status"`
	State    string   `json:"state,omitempty"`
	Triggers []string `json:"triggers,omitempty"`
}

type MapSubPlansOutput struct {
	Plans []SubPlanStatus `json:"plans"`
}

type LLMGenerateInput struct {
	Operation     string   `json:"operation"`
	ProjectID     string   `json:"project_id"`
	RunID         string   `json:"run_id"`
	Prompt        string   `json:"prompt"`
	Context       []string `json:"context"`
	ProviderIndex int      `json:"provider_index"`
}

type LLMGenerateOutput struct {
	Text         string `json:"text"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type UpdateDocStatusInput struct {
	DocID      string `json:"doc_id"`
	ProjectID  string `json:"project_id"`
	Filename   string `json:"filename"`
	SourceType string `json:"source_type"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
}

type ListFailedDocsInput struct {
	ProjectID string `json:"project_id"`
}

type FailedDoc struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
}

type ListFailedDocsOutput struct {
	Docs []FailedDoc `json:"docs"`
}

type ListProjectDocsInput struct {
	ProjectID string `json:"project_id"`
}

type ProjectDoc struct {
	DocID      string `json:"doc_id"`
	Filename   string `json:"filename"`
	SourceType string `json:"source_type"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
}

type ListProjectDocsOutput struct {
	Docs []ProjectDoc `json:"docs"`
}

type UpdateProjectMetadataInput struct {
	ProjectID string               `json:"project_id"`
	Metadata  models.MetadataState `json:"metadata"`
}

type WriteProjectContextInput struct {
	ProjectID string               `json:"project_id"`
	Context   ProjectContextRecord `json:"context"`
}

type LoadProjectContextInput struct {
	ProjectID string `json:"project_id"`
}

type LoadProjectContextOutput struct {
	Context ProjectContextRecord `json:"context"`
}

type WriteIngestSummaryInput struct {
	ProjectID string         `json:"project_id"`
	Summary   map[string]any `json:"summary"`
}

type WriteDocArtifactsInput struct {
	ProjectID     string         `json:"project_id"`
	DocID         string         `json:"doc_id"`
	Metadata      map[string]any `json:"metadata"`
	Chunks        []ChunkItem    `json:"chunks"`
	ProcessingLog map[string]any `json:"processing_log"`
}

type CreatePlanRunInput struct {
	RunID     string `json:"run_id"`
	ProjectID string `json:"project_id"`
}

type UpdatePlanRunInput struct {
	RunID         string `json:"run_id"`
	Status        string `json:"status"`
	ExportBlocked bool   `json:"export_blocked"`
	ManifestPath  string `json:"manifest_path,omitempty"`
}

type WriteRunManifestInput struct {
	ProjectID string         `json:"project_id"`
	RunID     string         `json:"run_id"`
	Manifest  map[string]any `json:"manifest"`
}

type WriteRunManifestOutput struct {
	Path string `json:"path"`
}

type WritePlanArtifactsInput struct {
	ProjectID string                   `json:"project_id"`
	RunID     string                   `json:"run_id"`
	Metadata  models.MetadataState     `json:"metadata"`
	Sections  []models.DocumentSection `json:"sections"`
	Plans     []SubPlanStatus          `json:"plans"`
}

type WritePlanArtifactsOutput struct {
	Paths []string `json:"paths"`
}

type WriteAHAReportInput struct {
	ProjectID string `json:"project_id"`
	RunID     string `json:"run_id"`
	Report    string `json:"report"`
}

type WriteAHAReportOutput struct {
	Path string `json:"path"`
}

type LogLLMCallInput struct {
	CallID       string `json:"call_id"`
	Operation    string `json:"operation"`
	ProjectID    string `json:"project_id"`
	RunID        string `json:"run_id"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type"`
}
