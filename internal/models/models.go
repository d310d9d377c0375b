package models

import "time"

type Project struct {
	ProjectID       string    `json:"project_id"`
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	Owner           string    `json:"owner"`
	PrimeContractor string    `json:"prime_contractor"`
	CreatedAt       time.Time `json:"created_at"`
}

// SourceDoc is one ingested input: a project specification file or a
// regulatory corpus document (EM 385-1-1, UFGS sections).
type SourceDoc struct {
	DocID      string    `json:"doc_id"`
	ProjectID  string    `json:"project_id"`
	Filename   string    `json:"filename"`
	SourceType string    `json:"source_type"` // "project" or "regulation"
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	SourceTypeProject    = "project"
	SourceTypeRegulation = "regulation"
)

// EvidenceChunk is a retrieved passage with provenance resolved once at the
// retrieval boundary. Immutable after construction.
type EvidenceChunk struct {
	ChunkID      string  `json:"chunk_id"`
	Text         string  `json:"text"`
	SourceLabel  string  `json:"source_label"` // file name or "EM 385-1-1"
	SourceType   string  `json:"source_type"`
	SectionTitle string  `json:"section_title,omitempty"`
	SectionPath  string  `json:"section_path,omitempty"`
	Division     string  `json:"division,omitempty"`
	PageNumber   *int    `json:"page_number,omitempty"`
	PageLabel    string  `json:"page_label,omitempty"`
	Score        float64 `json:"score,omitempty"`
}

// ExtractedEvidence is one verbatim bullet derived from an EvidenceChunk.
// Text is a word-level truncation of a sentence present in the chunk, never
// a paraphrase.
type ExtractedEvidence struct {
	ChunkID     string `json:"chunk_id"`
	Text        string `json:"text"`
	SourceLabel string `json:"source_label"`
	PageRef     string `json:"page_ref,omitempty"`
	SectionRef  string `json:"section_ref,omitempty"`
}

type Citation struct {
	SectionPath string `json:"section_path,omitempty"`
	PageLabel   string `json:"page_label,omitempty"`
	PageNumber  *int   `json:"page_number,omitempty"`
	QuoteAnchor string `json:"quote_anchor,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	SourceLabel string `json:"source_label"`
	ChunkID     string `json:"chunk_id"`
}

// InsufficientEvidenceSentinel is returned instead of composed text whenever
// an evidence gate fails. Callers check for it literally; it is never an error.
const InsufficientEvidenceSentinel = "INSUFFICIENT EVIDENCE"

type SectionState string

const (
	StateNotStarted           SectionState = "not_started"
	StateEvidenceExtracted    SectionState = "evidence_extracted"
	StateComposed             SectionState = "composed"
	StateContaminationChecked SectionState = "contamination_checked"
	StateAccepted             SectionState = "accepted"
	StateInsufficientEvidence SectionState = "insufficient_evidence"
)

// SectionGenerationResult is created fresh per section per run and never
// mutated after construction.
type SectionGenerationResult struct {
	SectionID        string              `json:"section_id"`
	Text             string              `json:"text"`
	Evidence         []ExtractedEvidence `json:"evidence"`
	Citations        []Citation          `json:"citations"`
	Insufficient     bool                `json:"insufficient"`
	RemovedSentences int                 `json:"removed_sentences"`
	State            SectionState        `json:"state"`
}

// DocumentSection is the exporter-facing shape: ordered paragraphs plus the
// citations backing them.
type DocumentSection struct {
	SectionID        string     `json:"section_id"`
	Name             string     `json:"name"`
	Paragraphs       []string   `json:"paragraphs"`
	Citations        []Citation `json:"citations"`
	Insufficient     bool       `json:"insufficient"`
	RegulationOnly   bool       `json:"regulation_only"`
	FallbackTemplate bool       `json:"fallback_template,omitempty"`
}

// Pipeline-stage records. Each is produced by exactly one phase and read-only
// afterwards.

type MetadataState struct {
	ProjectName     string   `json:"project_name"`
	Location        string   `json:"location"`
	Owner           string   `json:"owner"`
	PrimeContractor string   `json:"prime_contractor"`
	WorkActivities  []string `json:"work_activities,omitempty"`
	Hazards         []string `json:"hazards,omitempty"`
	SourceDocs      []string `json:"source_docs,omitempty"`
}

type ProcessingState struct {
	Sections []DocumentSection `json:"sections"`
}

type ValidationState struct {
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	CanProceed bool     `json:"can_proceed"`
}

type OutputState struct {
	RunID         string   `json:"run_id"`
	ManifestPath  string   `json:"manifest_path"`
	ExportBlocked bool     `json:"export_blocked"`
	ArtifactPaths []string `json:"artifact_paths,omitempty"`
}

type PlanRun struct {
	RunID         string    `json:"run_id"`
	ProjectID     string    `json:"project_id"`
	Status        string    `json:"status"`
	ExportBlocked bool      `json:"export_blocked"`
	ManifestPath  string    `json:"manifest_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChunkResult is a raw row from the vector store before provenance resolution.
type ChunkResult struct {
	ChunkID      string  `json:"chunk_id"`
	DocID        string  `json:"doc_id"`
	Filename     string  `json:"filename"`
	SourceType   string  `json:"source_type"`
	SourceLabel  string  `json:"source_label"`
	SectionTitle string  `json:"section_title"`
	SectionPath  string  `json:"section_path"`
	Division     string  `json:"division"`
	PageStart    *int    `json:"page_start,omitempty"`
	PageEnd      *int    `json:"page_end,omitempty"`
	PageLabel    string  `json:"page_label,omitempty"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
	ChunkText    string  `json:"chunk_text,omitempty"`
}
