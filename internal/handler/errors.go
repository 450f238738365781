package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/response"
	"github.com/stemsi/exstem-ingest/internal/service"
	"github.com/stemsi/exstem-ingest/internal/validator"
)

// NotFound answers requests for routes that do not exist.
func NotFound(c *gin.Context) {
	response.Fail(c, http.StatusNotFound, response.ErrNotFound)
}

// failError maps pipeline and service errors onto the API error codes.
func failError(c *gin.Context, err error) {
	var fe *validator.FieldsError
	switch {
	case errors.As(err, &fe):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fe.Fields)
	case errors.Is(err, model.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrProfileNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrProfileNotFound)
	case errors.Is(err, model.ErrInvalidTransition):
		response.FailWithFields(c, http.StatusConflict, response.ErrInvalidTransition, detail(err))
	case errors.Is(err, model.ErrBlockingIssues):
		response.FailWithFields(c, http.StatusConflict, response.ErrBlockingIssues, detail(err))
	case errors.Is(err, model.ErrNotOverridable):
		response.Fail(c, http.StatusBadRequest, response.ErrNotOverridable)
	case errors.Is(err, model.ErrFileUnreadable):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrFileUnreadable, detail(err))
	case errors.Is(err, model.ErrBookletConfig), errors.Is(err, service.ErrLayoutMissing):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrBookletConfig, detail(err))
	case errors.Is(err, model.ErrDuplicateRole):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrDuplicateRole, detail(err))
	case errors.Is(err, model.ErrColumnOutOfRange):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrColumnOutOfRange, detail(err))
	case errors.Is(err, model.ErrRowOutOfRange):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrRowOutOfRange, detail(err))
	case errors.Is(err, model.ErrStudentNotInRoster):
		response.Fail(c, http.StatusNotFound, response.ErrStudentNotInRoster)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func detail(err error) map[string]string {
	return map[string]string{"detail": err.Error()}
}
