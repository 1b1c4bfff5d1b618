package handler

import (
	"net/http"
	"strconv"

	"rentscope/internal/model"
	"rentscope/internal/service"

	"github.com/gin-gonic/gin"
)

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	searchService *service.SearchService
	similarLimit  int
	maxLimit      int
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService *service.SearchService, similarLimit, maxLimit int) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		similarLimit:  similarLimit,
		maxLimit:      maxLimit,
	}
}

// UserContext copies the caller's user id from the X-User-ID header onto
// the request context for the identity collaborator to resolve. The
// upstream gateway is trusted to have authenticated the header.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			ctx := service.WithUserID(c.Request.Context(), userID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.searchService.Search(c.Request.Context(), req.SessionID, req.Criteria)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// SmartSearch handles POST /api/v1/search/smart. Ranking-service outages
// never surface as errors here; the response degrades to deterministic
// results with an advisory notice.
func (h *SearchHandler) SmartSearch(c *gin.Context) {
	var req model.SmartSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.searchService.SmartSearch(c.Request.Context(), req.SessionID, req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetProperty handles GET /api/v1/properties/:id
func (h *SearchHandler) GetProperty(c *gin.Context) {
	property, err := h.searchService.GetProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get property: " + err.Error()})
		return
	}
	if property == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	c.JSON(http.StatusOK, property)
}

// SimilarProperties handles GET /api/v1/properties/:id/similar
func (h *SearchHandler) SimilarProperties(c *gin.Context) {
	limit := h.similarLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	properties, err := h.searchService.SimilarProperties(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get similar properties: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": properties, "total": len(properties)})
}
