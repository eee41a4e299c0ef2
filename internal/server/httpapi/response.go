package httpapi

import (
	"errors"
	"net/http"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/gin-gonic/gin"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Response{Success: true, Message: msg, Data: data})
}

var statusByKind = map[string]int{
	"not_found":           http.StatusNotFound,
	"forbidden":           http.StatusForbidden,
	"invalid_argument":    http.StatusBadRequest,
	"invalid_file_type":   http.StatusBadRequest,
	"payload_too_large":   http.StatusRequestEntityTooLarge,
	"conflict":            http.StatusConflict,
	"unauthorized":        http.StatusUnauthorized,
	"storage_unavailable": http.StatusServiceUnavailable,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	if s, ok := statusByKind[common.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func isMaxBytes(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// respondError writes err using the envelope and aborts the chain.
func respondError(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		err = common.NewError(common.ErrPayloadTooLarge, "request body exceeds %d bytes", mbe.Limit)
	}
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Message: common.Detail(err),
		Kind:    common.KindOf(err),
	})
}

func badRequest(c *gin.Context, format string, args ...any) {
	respondError(c, common.NewError(common.ErrInvalidArgument, format, args...))
}
