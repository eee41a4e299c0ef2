package httpapi

import (
	"net/http"
	"time"

	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/services"
	"github.com/gin-gonic/gin"
)

type userResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	models.ProfileColumns
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role(),
		ProfileColumns: models.Flatten(u.Profile),
		CreatedAt:      u.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

func newTokenResponse(r *services.AuthResult) tokenResponse {
	return tokenResponse{AccessToken: r.AccessToken, TokenType: "bearer", User: newUserResponse(r.User)}
}

func (h *handler) register(c *gin.Context) {
	var reg models.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		badRequest(c, "malformed registration: %v", err)
		return
	}
	res, err := h.Users.Register(c.Request.Context(), reg)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "user registered", newTokenResponse(res))
}

type loginRequest struct {
	Name     string `json:"name" form:"name" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "name and password are required")
		return
	}
	res, err := h.Users.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "logged in", newTokenResponse(res))
}

func (h *handler) me(c *gin.Context) {
	u, err := h.Users.Me(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", newUserResponse(u))
}
