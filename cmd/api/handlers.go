package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docsage-ai/docsage/engine/domain"
	"github.com/docsage-ai/docsage/engine/index"
	"github.com/docsage-ai/docsage/engine/ingest"
	"github.com/docsage-ai/docsage/engine/query"
	"github.com/docsage-ai/docsage/engine/scraper"
	"github.com/docsage-ai/docsage/engine/store"
	"github.com/docsage-ai/docsage/pkg/metrics"
	"github.com/docsage-ai/docsage/pkg/mid"
)

const maxUploadBytes = 32 << 20

// server bundles the handlers' dependencies.
type server struct {
	store   *store.Store
	files   *store.FileStore
	index   *index.Manager
	ingest  *ingest.Pipeline
	query   *query.Orchestrator
	scraper *scraper.Scraper
	logger  *slog.Logger
	reg     *metrics.Registry
}

// routes returns the authenticated API mux.
func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents", s.handleUpload)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("PATCH /api/documents/{id}/folder", s.handleMoveDocument)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteHistory)
	mux.HandleFunc("POST /api/folders", s.handleCreateFolder)
	mux.HandleFunc("GET /api/folders", s.handleListFolders)
	mux.HandleFunc("PATCH /api/folders/{id}", s.handleRenameFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", s.handleDeleteFolder)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// mustUserID reads the user set by the auth middleware. Handlers are
// only mounted behind mid.Auth, so a missing user is a wiring bug.
func mustUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := mid.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return "", false
	}
	return userID, true
}

type documentResponse struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	FolderID  *int64    `json:"folder_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toDocumentResponse(d domain.SourceDocument) documentResponse {
	return documentResponse{
		ID: d.ID, Filename: d.Filename, FileType: d.FileType,
		FolderID: d.FolderID, CreatedAt: d.CreatedAt,
	}
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if err := domain.ValidateFilename(filename); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	var folderID *int64
	if v := r.FormValue("folder_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid folder_id")
			return
		}
		folderID = &id
	}

	staged, err := s.files.Stage(userID, filename, file)
	if err != nil {
		s.logger.Error("staging upload failed", "user_id", userID, "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "could not store file")
		return
	}

	res, err := s.ingest.Ingest(r.Context(), userID, staged.Path())
	if err != nil {
		// A previously stored file of the same name stays intact.
		staged.Discard()
		if errors.Is(err, domain.ErrLoad) {
			writeError(w, http.StatusUnprocessableEntity, "could not extract text from file")
			return
		}
		s.logger.Error("ingest failed", "user_id", userID, "filename", filename, "error", err)
		writeError(w, http.StatusBadGateway, "could not index document")
		return
	}
	if err := staged.Commit(); err != nil {
		staged.Discard()
		s.logger.Error("promoting upload failed", "user_id", userID, "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "could not store file")
		return
	}

	doc := &domain.SourceDocument{
		UserID:   userID,
		Filename: filename,
		FileType: strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
		FolderID: folderID,
	}
	if err := s.store.AddDocument(r.Context(), doc); err != nil {
		s.logger.Error("recording document failed", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "could not record document")
		return
	}

	s.reg.Counter("docsage_documents_ingested_total", "Documents successfully ingested").Inc()
	writeJSON(w, http.StatusCreated, map[string]any{
		"document": toDocumentResponse(*doc),
		"chunks":   res.Chunks,
	})
}

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	docs, err := s.store.ListDocuments(r.Context(), userID)
	if err != nil {
		s.logger.Error("listing documents failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	docID := r.PathValue("id")

	doc, err := s.store.GetDocument(r.Context(), userID, docID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	if err := s.store.DeleteDocument(r.Context(), userID, docID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete document")
		return
	}
	if err := s.files.Delete(userID, doc.Filename); err != nil {
		s.logger.Error("deleting upload failed", "filename", doc.Filename, "error", err)
	}

	// With no documents left there is nothing to rebuild from, so the
	// vector collection goes too instead of serving stale chunks.
	remaining, err := s.store.ListDocuments(r.Context(), userID)
	if err == nil && len(remaining) == 0 {
		if err := s.index.Drop(r.Context(), userID); err != nil {
			s.logger.Error("dropping index failed", "user_id", userID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type scrapeRequest struct {
	URL      string `json:"url"`
	FolderID *int64 `json:"folder_id,omitempty"`
}

func (s *server) handleScrape(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := domain.ValidateScrapeURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, "url must be absolute http(s)")
		return
	}

	text, err := s.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		s.logger.Warn("scrape failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadGateway, "could not scrape page")
		return
	}

	filename := scraper.Filename(time.Now().UTC())
	staged, err := s.files.Stage(userID, filename, strings.NewReader(text))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store scraped text")
		return
	}

	res, err := s.ingest.Ingest(r.Context(), userID, staged.Path())
	if err != nil {
		staged.Discard()
		s.logger.Error("scrape ingest failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadGateway, "could not index scraped page")
		return
	}
	if err := staged.Commit(); err != nil {
		staged.Discard()
		writeError(w, http.StatusInternalServerError, "could not store scraped text")
		return
	}

	doc := &domain.SourceDocument{
		UserID:   userID,
		Filename: filename,
		FileType: "txt",
		FolderID: req.FolderID,
	}
	if err := s.store.AddDocument(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, "could not record document")
		return
	}

	s.reg.Counter("docsage_pages_scraped_total", "Pages scraped and ingested").Inc()
	writeJSON(w, http.StatusCreated, map[string]any{
		"document": toDocumentResponse(*doc),
		"chunks":   res.Chunks,
	})
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	rec, sources, err := s.query.Ask(r.Context(), userID, req.Question)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.Error("query failed", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "could not answer question")
		return
	}
	s.reg.Histogram("docsage_query_seconds", "End-to-end query latency", nil).Since(start)
	s.reg.Counter("docsage_queries_total", "Questions answered").Inc()

	type source struct {
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata,omitempty"`
		Score    float32        `json:"score"`
	}
	outSources := make([]source, len(sources))
	for i, c := range sources {
		outSources[i] = source{Content: c.Content, Metadata: c.Metadata, Score: c.Score}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       rec.ID,
		"question": rec.Question,
		"answer":   rec.Answer,
		"sources":  outSources,
	})
}

func (s *server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteQuery(r.Context(), userID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "history entry not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete history entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	FolderID *int64 `json:"folder_id"`
}

func (s *server) handleMoveDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := s.store.SetDocumentFolder(r.Context(), userID, r.PathValue("id"), req.FolderID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not move document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	recs, err := s.store.ListQueries(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list history")
		return
	}
	type entry struct {
		ID        string    `json:"id"`
		Question  string    `json:"question"`
		Answer    string    `json:"answer"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]entry, len(recs))
	for i, rec := range recs {
		out[i] = entry{ID: rec.ID, Question: rec.Question, Answer: rec.Answer, CreatedAt: rec.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": out})
}

type folderRequest struct {
	Name string `json:"name"`
}

func (s *server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req folderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	folder, err := s.store.CreateFolder(r.Context(), userID, strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, http.StatusConflict, "could not create folder")
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (s *server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	folders, err := s.store.ListFolders(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list folders")
		return
	}
	if folders == nil {
		folders = []domain.Folder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func folderIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (s *server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	folderID, err := folderIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid folder id")
		return
	}
	var req folderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	err = s.store.RenameFolder(r.Context(), userID, folderID, strings.TrimSpace(req.Name))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "folder not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not rename folder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	folderID, err := folderIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid folder id")
		return
	}
	err = s.store.DeleteFolder(r.Context(), userID, folderID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "folder not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete folder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
