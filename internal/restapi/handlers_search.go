package restapi

import (
	"github.com/gin-gonic/gin"

	"github.com/synapsegraph/synapse/pkg/synapse"
)

// SearchMemoriesRequest is the POST /memories/search request body.
type SearchMemoriesRequest struct {
	UserID        string   `json:"user_id" binding:"required"`
	Query         string   `json:"query" binding:"required"`
	Limit         int      `json:"limit"`
	ContainerTags []string `json:"container_tags"`
}

type searchResultData struct {
	Memory *MemoryData `json:"memory"`
	Score  float64     `json:"score"`
}

func (s *Server) runSearch(c *gin.Context, userID, query string, limit int, tags []string) {
	if err := validateQuery(query); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	results, err := s.engine.Search(c.Request.Context(), synapse.SearchOptions{
		UserID:        userID,
		Query:         query,
		Limit:         clampLimit(limit),
		ContainerTags: tags,
	})
	if err != nil {
		RespondError(c, "search memories", err)
		return
	}

	out := make([]searchResultData, len(results))
	for i, r := range results {
		out[i] = searchResultData{Memory: toMemoryData(r.Memory), Score: r.Score}
	}
	SuccessResponse(c, "search completed", out)
}

// searchMemoriesGET handles GET /api/v1/memories/search?user_id=...&query=...
func (s *Server) searchMemoriesGET(c *gin.Context) {
	userID := c.Query("user_id")
	query := c.Query("query")
	if userID == "" || query == "" {
		BadRequestError(c, "user_id and query parameters are required")
		return
	}
	limit := parseIntQuery(c, "limit", DefaultLimit)
	s.runSearch(c, userID, query, limit, nil)
}

// searchMemoriesPOST handles POST /api/v1/memories/search.
func (s *Server) searchMemoriesPOST(c *gin.Context) {
	var req SearchMemoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	s.runSearch(c, req.UserID, req.Query, req.Limit, req.ContainerTags)
}

// getUserContext handles GET /api/v1/users/:userID/context.
func (s *Server) getUserContext(c *gin.Context) {
	userID := c.Param("userID")
	ctx, err := s.engine.GetUserContext(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, "get user context", err)
		return
	}

	staticData := make([]*MemoryData, len(ctx.Static))
	for i, m := range ctx.Static {
		staticData[i] = toMemoryData(m)
	}
	SuccessResponse(c, "user context retrieved", gin.H{
		"static":  staticData,
		"dynamic": ctx.Dynamic,
	})
}
