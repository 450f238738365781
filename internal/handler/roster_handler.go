package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/repository"
	"github.com/stemsi/exstem-ingest/internal/response"
	"github.com/stemsi/exstem-ingest/internal/validator"
)

// ClassStore reads and creates roster classes.
type ClassStore interface {
	List(ctx context.Context) ([]model.Class, error)
	Ensure(ctx context.Context, name string) (*model.Class, error)
}

// StudentStore reads and enrolls roster students.
type StudentStore interface {
	ListRoster(ctx context.Context, classes []string) ([]model.RosterStudent, error)
	Create(ctx context.Context, s *model.RosterStudent, classID int) error
}

// RosterInvalidator drops cached roster snapshots.
type RosterInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RosterHandler serves the roster that uploads are matched against.
type RosterHandler struct {
	classes  ClassStore
	students StudentStore
	cache    RosterInvalidator
	log      zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler. cache may be nil.
func NewRosterHandler(classes ClassStore, students StudentStore, cache RosterInvalidator, log zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		classes:  classes,
		students: students,
		cache:    cache,
		log:      log.With().Str("component", "roster_handler").Logger(),
	}
}

// ListClasses godoc
// GET /api/v1/roster/classes
// Lists all classes without pagination.
func (h *RosterHandler) ListClasses(c *gin.Context) {
	classes, err := h.classes.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// ListStudents godoc
// GET /api/v1/roster/students?classes=8A,8B
// Lists the roster snapshot an import would see, for manual assignment.
func (h *RosterHandler) ListStudents(c *gin.Context) {
	var classes []string
	for _, name := range strings.Split(c.Query("classes"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			classes = append(classes, name)
		}
	}

	students, err := h.students.ListRoster(c.Request.Context(), classes)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"students": students})
}

// CreateStudentRequest is the payload for enrolling a student.
type CreateStudentRequest struct {
	StudentNumber string `json:"student_number" binding:"omitempty,max=20"`
	NationalID    string `json:"national_id" binding:"omitempty,numeric,max=20"`
	FullName      string `json:"full_name" binding:"required,min=2,max=255"`
	ClassName     string `json:"class_name" binding:"required,max=32"`
}

// CreateStudent godoc
// POST /api/v1/roster/students
// Enrolls a student, creating the class on first use.
func (h *RosterHandler) CreateStudent(c *gin.Context) {
	var req CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.classes.Ensure(c.Request.Context(), req.ClassName)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	student := &model.RosterStudent{
		StudentNumber: req.StudentNumber,
		NationalID:    req.NationalID,
		FullName:      req.FullName,
		ClassName:     class.Name,
	}
	if err := h.students.Create(c.Request.Context(), student, class.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicateNationalID) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(c.Request.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Roster cache invalidation failed")
		}
	}

	response.Success(c, http.StatusCreated, gin.H{"student": student})
}
