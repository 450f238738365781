package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/repository"
	"github.com/stemsi/exstem-ingest/internal/response"
	"github.com/stemsi/exstem-ingest/internal/service"
	"github.com/stemsi/exstem-ingest/internal/validator"
)

// BatchLister lists persisted commits of an exam.
type BatchLister interface {
	ListBatches(ctx context.Context, examID string, limit, offset int) ([]repository.ImportBatch, int, error)
}

// ProfileHandler serves exam profiles and their import history.
type ProfileHandler struct {
	profiles *service.ProfileService
	batches  BatchLister
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, batches BatchLister) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, batches: batches}
}

// GetProfile godoc
// GET /api/v1/exams/:exam_id/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), c.Param("exam_id"))
	if err != nil {
		failError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"profile": p})
}

// PutProfile godoc
// PUT /api/v1/exams/:exam_id/profile
// Creates or replaces the profile. The path id wins over the body.
func (h *ProfileHandler) PutProfile(c *gin.Context) {
	var p model.ExamProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, validator.TranslateErrors(err))
		return
	}
	p.ID = c.Param("exam_id")

	if err := h.profiles.Save(c.Request.Context(), &p); err != nil {
		failError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"profile": p})
}

// ListImports godoc
// GET /api/v1/exams/:exam_id/imports
// Lists persisted commits with pagination, newest first.
func (h *ProfileHandler) ListImports(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	batches, total, err := h.batches.ListBatches(c.Request.Context(), c.Param("exam_id"), perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if batches == nil {
		batches = []repository.ImportBatch{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"imports": batches}, pagination)
}
