package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

type errorBody struct {
	Error         string       `json:"error"`
	Message       string       `json:"message"`
	Field         string       `json:"field,omitempty"`
	CurrentStatus types.Status `json:"current_status,omitempty"`
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, errorBody{Error: code, Message: msg})
}

// fail maps the engine's error taxonomy onto HTTP. Anything unrecognised is
// attached to the context for the request logger and reported as a 500
// without detail.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		ve *types.ValidationError
		ce *types.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error(), Field: ve.Field})
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, errorBody{Error: "conflict", Message: err.Error(), CurrentStatus: ce.Status})
	case errors.Is(err, types.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, types.ErrForbidden):
		writeError(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, types.ErrNotYetValid):
		writeError(c, http.StatusUnprocessableEntity, "not_yet_valid", err.Error())
	case errors.Is(err, types.ErrExpired):
		writeError(c, http.StatusUnprocessableEntity, "expired", err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

// bind decodes a JSON body, reporting malformed input as 400.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}
