package restapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/synapsegraph/synapse/internal/store"
	"github.com/synapsegraph/synapse/pkg/synapse"
)

// MemoryData is the wire representation of a stored memory.
type MemoryData struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Importance    float64   `json:"importance"`
	Confidence    float64   `json:"confidence"`
	IsStatic      bool      `json:"is_static"`
	IsLatest      bool      `json:"is_latest"`
	Source        string    `json:"source"`
	Entities      []string  `json:"entities"`
	Topics        []string  `json:"topics"`
	ContainerTags []string  `json:"container_tags"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed"`
}

func toMemoryData(m *store.Memory) *MemoryData {
	return &MemoryData{
		ID:            m.ID,
		Content:       m.Content,
		Importance:    m.Importance,
		Confidence:    m.Confidence,
		IsStatic:      m.IsStatic,
		IsLatest:      m.IsLatest,
		Source:        string(m.Source),
		Entities:      nonNilStrings(m.Entities),
		Topics:        nonNilStrings(m.Topics),
		ContainerTags: nonNilStrings(m.ContainerTags),
		CreatedAt:     m.CreatedAt,
		LastAccessed:  m.LastAccessed,
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// CreateMemoryRequest is the POST /memories request body.
type CreateMemoryRequest struct {
	UserID        string   `json:"user_id" binding:"required"`
	Content       string   `json:"content" binding:"required"`
	Importance    float64  `json:"importance"`
	Entities      []string `json:"entities"`
	Topics        []string `json:"topics"`
	ContainerTags []string `json:"container_tags"`
	Source        string   `json:"source"`
}

// UpdateMemoryRequest is the PUT /memories/:id request body.
type UpdateMemoryRequest struct {
	Content    string   `json:"content"`
	Importance *float64 `json:"importance"`
}

// createMemory handles POST /api/v1/memories.
func (s *Server) createMemory(c *gin.Context) {
	var req CreateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	if err := validateContent(req.Content); err != nil {
		BadRequestError(c, err.Error())
		return
	}
	if err := validateTags(req.ContainerTags); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	m, err := s.engine.Add(c.Request.Context(), synapse.AddOptions{
		UserID:        req.UserID,
		Content:       req.Content,
		Importance:    req.Importance,
		Entities:      req.Entities,
		Topics:        req.Topics,
		ContainerTags: req.ContainerTags,
		Source:        store.Source(req.Source),
	})
	if err != nil {
		RespondError(c, "add memory", err)
		return
	}
	CreatedResponse(c, "memory stored", toMemoryData(m))
}

// getMemory handles GET /api/v1/memories/:id.
func (s *Server) getMemory(c *gin.Context) {
	id := c.Param("id")
	m, err := s.engine.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, "get memory", err)
		return
	}
	SuccessResponse(c, "memory retrieved", toMemoryData(m))
}

// listMemories handles GET /api/v1/memories?user_id=...
func (s *Server) listMemories(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		BadRequestError(c, "user_id query parameter is required")
		return
	}
	limit := clampLimit(parseIntQuery(c, "limit", DefaultLimit))

	memories, err := s.engine.ListByUser(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, "list memories", err)
		return
	}
	if limit < len(memories) {
		memories = memories[:limit]
	}

	out := make([]*MemoryData, len(memories))
	for i, m := range memories {
		out[i] = toMemoryData(m)
	}
	SuccessResponse(c, "memories listed", out)
}

// updateMemory handles PUT /api/v1/memories/:id.
func (s *Server) updateMemory(c *gin.Context) {
	id := c.Param("id")

	var req UpdateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	if err := validateContent(req.Content); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	m, err := s.engine.Update(c.Request.Context(), synapse.UpdateOptions{
		ID:         id,
		Content:    req.Content,
		Importance: req.Importance,
	})
	if err != nil {
		RespondError(c, "update memory", err)
		return
	}
	SuccessResponse(c, "memory updated", toMemoryData(m))
}

// deleteMemory handles DELETE /api/v1/memories/:id.
func (s *Server) deleteMemory(c *gin.Context) {
	id := c.Param("id")
	if err := s.engine.Delete(c.Request.Context(), id); err != nil {
		RespondError(c, "delete memory", err)
		return
	}
	SuccessResponse(c, "memory deleted", gin.H{"id": id, "status": "deleted"})
}

// getRelated handles GET /api/v1/memories/:id/related.
func (s *Server) getRelated(c *gin.Context) {
	id := c.Param("id")
	edges, err := s.engine.GetRelated(c.Request.Context(), id)
	if err != nil {
		RespondError(c, "get related", err)
		return
	}

	type edgeData struct {
		To         string  `json:"to"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	out := make([]edgeData, len(edges))
	for i, e := range edges {
		out[i] = edgeData{To: e.To, Type: string(e.Type), Confidence: e.Confidence}
	}
	SuccessResponse(c, "related memories listed", out)
}
