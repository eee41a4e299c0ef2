package httpapi

import (
	"net/http"

	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/gin-gonic/gin"
)

func (h *handler) listOrphans(c *gin.Context) {
	report, err := h.Orphans.ListOrphans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, report.Error, report)
}

func (h *handler) recoverOrphan(c *gin.Context) {
	var in models.RecoverInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "malformed request: %v", err)
		return
	}
	note, err := h.Orphans.Recover(c.Request.Context(), in, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "orphan recovered", note)
}
