package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/parser"
	"github.com/stemsi/exstem-ingest/internal/response"
	"github.com/stemsi/exstem-ingest/internal/service"
	"github.com/stemsi/exstem-ingest/internal/validator"
)

// Accepted upload extensions. Optical reader exports come as .txt or .dat.
var allowedExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".txt":  true,
	".dat":  true,
	".xlsx": true,
}

// ImportHandler exposes import sessions over HTTP.
type ImportHandler struct {
	imports        *service.ImportService
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(imports *service.ImportService, maxUploadBytes int64, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		imports:        imports,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("component", "import_handler").Logger(),
	}
}

// CreateImport godoc
// POST /api/v1/imports
// Uploads a result file and parses it into a new session.
func (h *ImportHandler) CreateImport(c *gin.Context) {
	var req model.CreateImportRequest
	if err := c.ShouldBind(&req); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	if !allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return
	}
	if header.Size > h.maxUploadBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}

	opts := parser.Options{
		Header: parser.HeaderMode(req.Header),
		Sheet:  req.Sheet,
	}
	if req.Delimiter != "" {
		opts.Delimiter = []rune(req.Delimiter)[0]
	}

	view, err := h.imports.Create(c.Request.Context(), service.CreateImportInput{
		ExamID:     req.ExamID,
		SourceName: header.Filename,
		Data:       data,
		Classes:    req.Classes,
		Options:    opts,
		FixedWidth: req.FixedWidth,
	})
	if err != nil {
		if errors.Is(err, model.ErrFileUnreadable) && view.Fatal != nil {
			response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrFileUnreadable, map[string]string{
				"session_id": view.ID.String(),
				"detail":     view.Fatal.Message,
				"remedy":     view.Fatal.Remedy,
			})
			return
		}
		failError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": view})
}

// GetImport godoc
// GET /api/v1/imports/:session_id
// Returns the session snapshot and whether its commit has been persisted.
func (h *ImportHandler) GetImport(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.imports.View(id)
	if err != nil {
		failError(c, err)
		return
	}
	persisted, err := h.imports.Persisted(c.Request.Context(), id)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", id.String()).Msg("Persisted check failed")
	}
	response.Success(c, http.StatusOK, gin.H{"session": view, "persisted": persisted})
}

// MapColumns godoc
// PUT /api/v1/imports/:session_id/mapping
// Infers the column mapping or applies manual overrides on top of it.
func (h *ImportHandler) MapColumns(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req model.MapColumnsRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	mapping, err := h.imports.MapColumns(id, req.Overrides)
	if err != nil {
		failError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"mapping": mapping})
}

// MatchStudents godoc
// POST /api/v1/imports/:session_id/match
// Matches every row against the roster and scores it.
func (h *ImportHandler) MatchStudents(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	outcomes, err := h.imports.Match(c.Request.Context(), id)
	if err != nil {
		failError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"outcomes": outcomes})
}

// Validate godoc
// POST /api/v1/imports/:session_id/validate
// Runs preflight and returns the go/no-go report.
func (h *ImportHandler) Validate(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	res, err := h.imports.Validate(id)
	if err != nil {
		failError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"preflight": res})
}

// Override godoc
// POST /api/v1/imports/:session_id/overrides
// Accepts the blocking issues of one overridable kind.
func (h *ImportHandler) Override(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req model.OverrideRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	res, err := h.imports.Override(id, req.Kind)
	if err != nil {
		failError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"preflight": res, "accepted": req.Kind})
}

// AssignStudent godoc
// POST /api/v1/imports/:session_id/assignments
// Binds a parked row to a roster student by hand.
func (h *ImportHandler) AssignStudent(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req model.AssignStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.imports.Assign(id, *req.Row, req.StudentID); err != nil {
		failError(c, err)
		return
	}
	view, _ := h.imports.View(id)
	response.Success(c, http.StatusOK, gin.H{"state": view.State})
}

// Commit godoc
// POST /api/v1/imports/:session_id/commit
// Commits the session and queues its payload for persistence.
func (h *ImportHandler) Commit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	payload, err := h.imports.Commit(c.Request.Context(), id)
	if err != nil {
		if payload != nil {
			h.log.Error().Err(err).Str("batch_id", payload.BatchID.String()).Msg("Committed payload not persisted")
		}
		failError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"payload": payload})
}

// Persist godoc
// POST /api/v1/imports/:session_id/persist
// Queues a committed payload again when its first hand-off failed.
func (h *ImportHandler) Persist(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	payload, err := h.imports.Persist(c.Request.Context(), id)
	if err != nil {
		if payload != nil {
			h.log.Error().Err(err).Str("batch_id", payload.BatchID.String()).Msg("Re-persist failed")
		}
		failError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"payload": payload})
}

// Abort godoc
// DELETE /api/v1/imports/:session_id
// Discards the session's work.
func (h *ImportHandler) Abort(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.imports.Abort(id); err != nil {
		failError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": "aborted"})
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
