package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/middleware"
	"github.com/h4ks-com/fieldops/internal/services"
)

type TokenHandler struct {
	tokenService *services.TokenService
}

func NewTokenHandler(tokenService *services.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

const defaultTokenLifetime = 30 * 24 * time.Hour

type CreateTokenRequest struct {
	Name      string `json:"name" binding:"max=64"`
	ExpiresIn string `json:"expires_in" example:"720h"`
}

type CreateTokenResponse struct {
	ID        uint   `json:"id"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type TokenListResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Preview   string `json:"preview"`
	Expired   bool   `json:"expired"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

// tokenPreview keeps the last characters of the signature so users can tell tokens apart.
func tokenPreview(token string) string {
	const keep = 6
	if len(token) <= keep {
		return token
	}
	return "…" + token[len(token)-keep:]
}

// CreateToken godoc
// @Summary Create API token
// @Description Mint a bearer token; expires_in defaults to 720h
// @Tags tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTokenRequest true "Token name and lifetime as a Go duration (e.g. 24h, 720h)"
// @Success 201 {object} CreateTokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /tokens [post]
func (h *TokenHandler) CreateToken(c *gin.Context) {
	username := middleware.GetUsername(c)

	var req CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	duration := defaultTokenLifetime
	if req.ExpiresIn != "" {
		parsed, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid expires_in format, use a duration like 24h or 720h", Kind: "validation"})
			return
		}
		duration = parsed
	}

	token, row, err := h.tokenService.GenerateToken(username, req.Name, duration)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateTokenResponse{
		ID:        row.ID,
		Token:     token,
		ExpiresAt: row.ExpiresAt.Format(time.RFC3339),
	})
}

// ListTokens godoc
// @Summary List API tokens
// @Description Tokens of the caller with a short preview of each
// @Tags tokens
// @Produce json
// @Security BearerAuth
// @Success 200 {array} TokenListResponse
// @Failure 401 {object} ErrorResponse
// @Router /tokens [get]
func (h *TokenHandler) ListTokens(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	tokens, err := h.tokenService.ListUserTokens(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	response := make([]TokenListResponse, len(tokens))
	for i, token := range tokens {
		response[i] = TokenListResponse{
			ID:        token.ID,
			Name:      token.Name,
			Preview:   tokenPreview(token.Token),
			Expired:   !token.ExpiresAt.After(now),
			ExpiresAt: token.ExpiresAt.Format(time.RFC3339),
			CreatedAt: token.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, response)
}

// DeleteToken godoc
// @Summary Delete API token
// @Description Delete an API token by ID
// @Tags tokens
// @Produce json
// @Security BearerAuth
// @Param id path int true "Token ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tokens/{id} [delete]
func (h *TokenHandler) DeleteToken(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.tokenService.DeleteToken(id, actor.ID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
