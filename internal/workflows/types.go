package workflows

type ProjectIngestInput struct {
	ProjectID             string `json:"project_id"`
	InputDir              string `json:"input_dir"`
	MaxConcurrentChildren int    `json:"max_concurrent_children"`
	EmbedProviders        int    `json:"embed_providers"`
	CooldownSeconds       int    `json:"cooldown_seconds"`
	ChunkVersion          string `json:"chunk_version"`
	EmbedVersion          string `json:"embed_version"`
}

type DocumentIngestInput struct {
	ProjectID                   string `json:"project_id"`
	DocPath                     string `json:"doc_path"`
	TargetTokens                int    `json:"target_tokens"`
	OverlapTokens               int    `json:"overlap_tokens"`
	MinTokens                   int    `json:"min_tokens"`
	ChunkVersion                string `json:"chunk_version"`
	EmbedVersion                string `json:"embed_version"`
	EmbedProviders              int    `json:"embed_providers"`
	PreferredEmbedProviderIndex int    `json:"preferred_embed_provider_index"`
	StrictEmbedProvider         bool   `json:"strict_embed_provider"`
	CooldownSeconds             int    `json:"cooldown_seconds"`
}

// DocumentIngestResult flows back to the parent so project-level metadata can
// be merged across documents without re-reading any source.
type DocumentIngestResult struct {
	Status     string   `json:"status"`
	DocID      string   `json:"doc_id"`
	SourceType string   `json:"source_type"`
	Name       string   `json:"name,omitempty"`
	Location   string   `json:"location,omitempty"`
	Owner      string   `json:"owner,omitempty"`
	Prime      string   `json:"prime,omitempty"`
	Activities []string `json:"activities,omitempty"`
	Hazards    []string `json:"hazards,omitempty"`
}

type PlanBuildInput struct {
	RunID           string `json:"run_id"`
	ProjectID       string `json:"project_id"`
	MaxConcurrent   int    `json:"max_concurrent"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

type AHABuildInput struct {
	RunID           string   `json:"run_id"`
	ProjectID       string   `json:"project_id"`
	Activities      []string `json:"activities"`
	RetrievalTopK   int      `json:"retrieval_top_k,omitempty"`
	EmbedProviders  int      `json:"embed_providers"`
	LLMProviders    int      `json:"llm_providers"`
	CooldownSeconds int      `json:"cooldown_seconds"`
	EmbedVersion    string   `json:"embed_version"`
}

type BackfillInput struct {
	ProjectID                   string `json:"project_id"`
	Mode                        string `json:"mode"`
	RunID                       string `json:"run_id,omitempty"`
	DataInRoot                  string `json:"data_in_root,omitempty"`
	ChunkVersion                string `json:"chunk_version,omitempty"`
	EmbedVersion                string `json:"embed_version,omitempty"`
	EmbedProviders              int    `json:"embed_providers,omitempty"`
	PreferredEmbedProviderIndex int    `json:"preferred_embed_provider_index,omitempty"`
	StrictEmbedProvider         bool   `json:"strict_embed_provider,omitempty"`
	CooldownSeconds             int    `json:"cooldown_seconds,omitempty"`
}

type DocumentStatus struct {
	DocID       string            `json:"doc_id"`
	DocPath     string            `json:"doc_path"`
	SourceType  string            `json:"source_type"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	Providers   []string          `json:"providers_used"`
	RetryCounts map[string]int    `json:"retry_counts"`
	Steps       map[string]string `json:"steps"`
}

type ProjectIngestProgress struct {
	ProjectID     string            `json:"project_id"`
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	PerDoc        map[string]string `json:"per_doc_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}

type PlanBuildProgress struct {
	RunID         string            `json:"run_id"`
	ProjectID     string            `json:"project_id"`
	TotalSections int               `json:"total_sections"`
	DoneSections  int               `json:"done_sections"`
	SectionStatus map[string]string `json:"section_status"`
	ExportBlocked bool              `json:"export_blocked"`
}

type AHAProgress struct {
	RunID          string            `json:"run_id"`
	ProjectID      string            `json:"project_id"`
	TotalTasks     int               `json:"total_tasks"`
	DoneTasks      int               `json:"done_tasks"`
	ActivityStatus map[string]string `json:"activity_status"`
}
