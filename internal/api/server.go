package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"safeplan/internal/config"
	"safeplan/internal/models"
	"safeplan/internal/providers"
	"safeplan/internal/storage"
	"safeplan/internal/util"
	"safeplan/internal/vector"
	"safeplan/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg         config.Config
	db          *storage.DB
	projectRepo *storage.ProjectRepo
	docRepo     *storage.DocumentRepo
	runRepo     *storage.RunRepo
	searcher    *vector.Searcher
	providers   *providers.Manager
	temporal    tclient.Client
}

type evidenceCitation struct {
	RefID       string  `json:"ref_id"`
	DocID       string  `json:"doc_id"`
	SourceLabel string  `json:"source_label"`
	SourceType  string  `json:"source_type"`
	Section     string  `json:"section,omitempty"`
	PageLabel   string  `json:"page_label,omitempty"`
	ChunkID     string  `json:"chunk_id"`
	Snippet     string  `json:"snippet"`
	Score       float64 `json:"score"`
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	return &Server{
		cfg:         cfg,
		db:          db,
		projectRepo: storage.NewProjectRepo(db),
		docRepo:     storage.NewDocumentRepo(db),
		runRepo:     storage.NewRunRepo(db),
		searcher:    vector.NewSearcher(db.Pool),
		providers:   pm,
		temporal:    tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/projects", s.handleProjects)
	mux.HandleFunc("/projects/", s.handleProjectsScoped)
	mux.HandleFunc("/runs/", s.handleRunsScoped)
	mux.HandleFunc("/search", s.handleSearch)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.projectRepo.ListProjects(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
	case http.MethodPost:
		var req struct {
			Name            string `json:"name"`
			Location        string `json:"location"`
			Owner           string `json:"owner"`
			PrimeContractor string `json:"prime_contractor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}

		projectID := uuid.NewString()
		project := models.Project{
			ProjectID:       projectID,
			Name:            req.Name,
			Location:        strings.TrimSpace(req.Location),
			Owner:           strings.TrimSpace(req.Owner),
			PrimeContractor: strings.TrimSpace(req.PrimeContractor),
		}
		if err := s.projectRepo.CreateProject(r.Context(), project); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}

		if err := util.EnsureDir(filepath.Join(s.cfg.DataInRoot, projectID)); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		if err := util.EnsureDir(filepath.Join(s.cfg.DataOutRoot, projectID)); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"project_id": projectID, "name": req.Name})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleProjectsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/projects/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	projectID := parts[0]

	if len(parts) == 2 && parts[1] == "upload" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleUpload(w, r, projectID)
		return
	}

	if len(parts) == 2 && parts[1] == "docs" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		docs, err := s.docRepo.ListDocsByProject(r.Context(), projectID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"docs": docs})
		return
	}
	if len(parts) == 4 && parts[1] == "docs" && parts[3] == "file" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		d, err := s.docRepo.GetDocByID(r.Context(), parts[2])
		if err != nil || d.ProjectID != projectID {
			writeErr(w, http.StatusNotFound, fmt.Errorf("document not found"))
			return
		}
		path := util.SafeJoin(filepath.Join(s.cfg.DataInRoot, projectID), d.Filename)
		if d.SourceType == models.SourceTypeRegulation {
			path = util.SafeJoin(filepath.Join(s.cfg.DataInRoot, projectID, "regulation"), d.Filename)
		}
		http.ServeFile(w, r, path)
		return
	}
	if len(parts) == 2 && parts[1] == "ingest" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		wfID := "ingest-" + projectID
		we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:                                       wfID,
			TaskQueue:                                s.cfg.TemporalTaskQueue,
			WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			WorkflowExecutionErrorWhenAlreadyStarted: true,
		}, workflows.ProjectIngestWorkflow, workflows.ProjectIngestInput{
			ProjectID:             projectID,
			InputDir:              filepath.Join(s.cfg.DataInRoot, projectID),
			MaxConcurrentChildren: s.cfg.IngestMaxChildren,
			EmbedProviders:        s.providers.EmbedCount(),
			CooldownSeconds:       s.cfg.ProviderCooldownSecs,
			EmbedVersion:          s.cfg.EmbedVersion,
		})
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
		return
	}
	if len(parts) == 2 && parts[1] == "progress" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var prog workflows.ProjectIngestProgress
		resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+projectID, "", workflows.QueryGetIngestProgress)
		if err != nil {
			// Fall back to DB-derived progress when no workflow is queryable.
			docs, dErr := s.docRepo.ListDocsByProject(r.Context(), projectID)
			if dErr != nil {
				writeErr(w, http.StatusInternalServerError, dErr)
				return
			}
			per := make(map[string]string, len(docs))
			done := 0
			failed := 0
			for _, d := range docs {
				per[d.Filename] = d.Status
				if d.Status == "processed" {
					done++
				}
				if d.Status == "failed" {
					failed++
				}
			}
			writeJSON(w, http.StatusOK, workflows.ProjectIngestProgress{
				ProjectID: projectID,
				Total:     len(docs),
				Done:      done,
				Failed:    failed,
				PerDoc:    per,
			})
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
		return
	}
	if len(parts) == 2 && parts[1] == "plan" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		runID := uuid.NewString()
		we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:        "plan-" + runID,
			TaskQueue: s.cfg.TemporalTaskQueue,
		}, workflows.PlanBuildWorkflow, workflows.PlanBuildInput{
			RunID:           runID,
			ProjectID:       projectID,
			MaxConcurrent:   s.cfg.SectionMaxConcurrent,
			CooldownSeconds: s.cfg.ProviderCooldownSecs,
		})
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"plan_run_id": runID, "workflow_id": we.GetID(), "run_id": we.GetRunID()})
		return
	}
	if len(parts) == 2 && parts[1] == "aha" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var req struct {
			Activities []string `json:"activities"`
			TopK       int      `json:"top_k"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if len(req.Activities) == 0 {
			req.Activities = s.storedActivities(projectID)
		}
		if len(req.Activities) == 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("at least one activity is required"))
			return
		}
		runID := uuid.NewString()
		we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:        "aha-" + runID,
			TaskQueue: s.cfg.TemporalTaskQueue,
		}, workflows.AHABuildWorkflow, workflows.AHABuildInput{
			RunID:           runID,
			ProjectID:       projectID,
			Activities:      req.Activities,
			RetrievalTopK:   req.TopK,
			EmbedProviders:  s.providers.EmbedCount(),
			LLMProviders:    s.providers.LLMCount(),
			CooldownSeconds: s.cfg.ProviderCooldownSecs,
			EmbedVersion:    s.cfg.EmbedVersion,
		})
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"aha_run_id": runID, "workflow_id": we.GetID(), "run_id": we.GetRunID()})
		return
	}
	if len(parts) == 2 && parts[1] == "backfill" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var req struct {
			Mode  string `json:"mode"`
			RunID string `json:"run_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if strings.TrimSpace(req.Mode) == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("mode is required"))
			return
		}
		wfID := "backfill-" + projectID + "-" + uuid.NewString()
		we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:        wfID,
			TaskQueue: s.cfg.TemporalTaskQueue,
		}, workflows.BackfillWorkflow, workflows.BackfillInput{
			ProjectID:       projectID,
			Mode:            req.Mode,
			RunID:           req.RunID,
			DataInRoot:      s.cfg.DataInRoot,
			EmbedVersion:    s.cfg.EmbedVersion,
			EmbedProviders:  s.providers.EmbedCount(),
			CooldownSeconds: s.cfg.ProviderCooldownSecs,
		})
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleRunsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	runID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		run, err := s.runRepo.GetRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	switch parts[1] {
	case "progress":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var prog workflows.PlanBuildProgress
		resp, err := s.temporal.QueryWorkflow(r.Context(), "plan-"+runID, "", workflows.QueryGetPlanProgress)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
	case "manifest":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		run, err := s.runRepo.GetRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		if run.ManifestPath == "" {
			writeJSON(w, http.StatusOK, map[string]any{"status": run.Status, "export_blocked": run.ExportBlocked})
			return
		}
		var manifest map[string]any
		if err := util.ReadJSON(run.ManifestPath, &manifest); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, manifest)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

// storedActivities reads the merged project context artifact written at the
// end of ingest. Missing or unreadable context is not an error here.
func (s *Server) storedActivities(projectID string) []string {
	var pctx struct {
		Activities []string `json:"activities"`
	}
	path := filepath.Join(s.cfg.DataOutRoot, projectID, "project_context.json")
	if err := util.ReadJSON(path, &pctx); err != nil {
		return nil
	}
	return pctx.Activities
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, projectID string) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	// Regulation uploads land in a regulation/ subdirectory so the ingest
	// workflow classifies them from the path.
	sourceType := strings.TrimSpace(r.FormValue("source_type"))
	inDir := filepath.Join(s.cfg.DataInRoot, projectID)
	if sourceType == models.SourceTypeRegulation {
		inDir = filepath.Join(inDir, "regulation")
	}
	if err := util.EnsureDir(inDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	type uploadResult struct {
		Filename string `json:"filename"`
		DocID    string `json:"doc_id"`
	}
	out := make([]uploadResult, 0, len(files))

	for _, fh := range files {
		if !allowedUpload(fh.Filename) {
			continue
		}
		docID, savedPath, err := saveUploadedFile(inDir, fh)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		st := models.SourceTypeProject
		if sourceType == models.SourceTypeRegulation {
			st = models.SourceTypeRegulation
		}
		if err := s.docRepo.UpsertDoc(r.Context(), models.SourceDoc{
			DocID:      docID,
			ProjectID:  projectID,
			Filename:   filepath.Base(savedPath),
			SourceType: st,
			Status:     "pending",
		}); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, uploadResult{Filename: filepath.Base(savedPath), DocID: docID})
	}

	writeJSON(w, http.StatusOK, map[string]any{"uploaded": out})
}

func allowedUpload(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		ProjectID  string `json:"project_id"`
		Query      string `json:"query"`
		TopK       int    `json:"top_k"`
		SourceType string `json:"source_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.Query = strings.TrimSpace(req.Query)
	if req.ProjectID == "" || req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("project_id and query are required"))
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.RetrieveTopK
	}

	var (
		info providers.ProviderInfo
		err  error
	)
	queryVectors := [][]float32(nil)
	for _, idx := range s.providers.PreferredEmbedOrder() {
		p, _ := s.providers.EmbedProviderByIndex(idx)
		queryVectors, info, err = p.Embed(r.Context(), providers.EmbedRequest{
			Operation: "search_query_embed",
			Inputs:    []string{req.Query},
			Dimension: s.cfg.EmbedDim,
		})
		if err == nil && len(queryVectors) > 0 {
			break
		}
	}
	if err != nil || len(queryVectors) == 0 {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("embedding providers unavailable"))
		return
	}

	results, err := s.searcher.SearchChunks(r.Context(), req.ProjectID, queryVectors[0], req.TopK, vector.SearchFilters{
		SourceType:       req.SourceType,
		EmbeddingVersion: s.cfg.EmbedVersion,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	citations := make([]evidenceCitation, 0, len(results))
	for i, res := range results {
		snippet := util.DisplayEvidenceSnippet(res.ChunkText, req.Query, 420)
		if snippet == "" {
			snippet = util.DisplaySnippet(res.Snippet, 420)
		}
		citations = append(citations, evidenceCitation{
			RefID:       fmt.Sprintf("C%d", i+1),
			DocID:       res.DocID,
			SourceLabel: res.SourceLabel,
			SourceType:  res.SourceType,
			Section:     res.SectionPath,
			PageLabel:   res.PageLabel,
			ChunkID:     res.ChunkID,
			Snippet:     snippet,
			Score:       res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"citations":       citations,
		"embed_provider":  info.Name,
		"embed_model":     info.Model,
		"retrieved_count": len(citations),
	})
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (docID, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), src); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}

	docID = fmt.Sprintf("%x", h.Sum(nil))
	finalPath := util.SafeJoin(dstDir, fh.Filename)
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("seek temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}

	return docID, finalPath, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "SP-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "SP-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "SP-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "SP-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "SP-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "SP-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "SP-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "SP-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "SP-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "name is required"):
			msg = "Project name is required."
		case strings.Contains(low, "project_id and query are required"):
			msg = "Both project and query are required."
		case strings.Contains(low, "at least one activity is required"):
			msg = "Provide activities in the request or ingest project documents first."
		case strings.Contains(low, "mode is required"):
			msg = "Backfill mode is required."
		case strings.Contains(low, "no files provided"):
			msg = "No acceptable files were provided."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
