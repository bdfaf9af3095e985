package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-chatbot/internal/models"
)

// StatusClientClosedRequest is reported when the client went away mid-query.
const StatusClientClosedRequest = 499

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// classify maps an error kind to an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrCancelled):
		return StatusClientClosedRequest, "cancelled"
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrExtraction):
		return http.StatusUnprocessableEntity, "extraction_failed"
	case errors.Is(err, models.ErrInvalidChunkConfig):
		return http.StatusUnprocessableEntity, "invalid_chunk_config"
	case errors.Is(err, models.ErrRetrieval):
		return http.StatusBadGateway, "retrieval_failed"
	case errors.Is(err, models.ErrIndexing):
		return http.StatusBadGateway, "indexing_failed"
	case errors.Is(err, models.ErrGeneration):
		return http.StatusBadGateway, "generation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr picks status and code from the error kind.
func RespondErr(c *gin.Context, err error) {
	status, code := classify(err)
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
