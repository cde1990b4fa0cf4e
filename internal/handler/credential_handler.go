package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/service"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/response"
)

// CredentialHandler exposes scan credential endpoints.
type CredentialHandler struct {
	credentials *service.CredentialService
}

// NewCredentialHandler constructs CredentialHandler.
func NewCredentialHandler(credentials *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

// Issue godoc
// @Summary Issue a fresh credential for a student
// @Tags Credentials
// @Produce json
// @Param id path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/credential [post]
func (h *CredentialHandler) Issue(c *gin.Context) {
	issued, err := h.credentials.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}

// IssueMine godoc
// @Summary Issue a credential for the authenticated student
// @Tags Credentials
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /credentials/mine [post]
func (h *CredentialHandler) IssueMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	issued, err := h.credentials.IssueForStudentUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}

// IssueAll godoc
// @Summary Issue fresh credentials for every student
// @Tags Credentials
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /credentials/issue-all [post]
func (h *CredentialHandler) IssueAll(c *gin.Context) {
	result, err := h.credentials.IssueAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
