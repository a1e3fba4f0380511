package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/orghub-api/internal/service"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/response"
)

// SearchHandler wires HTTP endpoints to the search service.
type SearchHandler struct {
	service *service.SearchService
	metrics *service.MetricsService
}

// NewSearchHandler creates a new handler.
func NewSearchHandler(svc *service.SearchService, metrics *service.MetricsService) *SearchHandler {
	return &SearchHandler{service: svc, metrics: metrics}
}

// Search godoc
// @Summary Search files
// @Description Find files across the caller's organizations by organization name, folder label, course label or file name
// @Tags Search
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search query"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	results, err := h.service.Search(c.Request.Context(), claims.UserID, c.Query("q"))
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveSearch(0)
		}
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveSearch(len(results.Files))
	}
	response.JSON(c, http.StatusOK, results, nil)
}
