package restapi

import "github.com/gin-gonic/gin"

// ConsolidateRequest is the POST /maintenance/consolidate request body.
type ConsolidateRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// consolidate handles POST /api/v1/maintenance/consolidate.
func (s *Server) consolidate(c *gin.Context) {
	var req ConsolidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	removed, err := s.engine.ConsolidateMemories(c.Request.Context(), req.UserID)
	if err != nil {
		RespondError(c, "consolidate memories", err)
		return
	}
	SuccessResponse(c, "consolidation complete", gin.H{"removed": removed})
}

// decay handles POST /api/v1/maintenance/decay.
func (s *Server) decay(c *gin.Context) {
	count, err := s.engine.ProcessDecay(c.Request.Context())
	if err != nil {
		RespondError(c, "process decay", err)
		return
	}
	SuccessResponse(c, "decay pass complete", gin.H{"processed": count})
}

// prune handles POST /api/v1/maintenance/prune.
func (s *Server) prune(c *gin.Context) {
	count, err := s.engine.PruneMemories(c.Request.Context())
	if err != nil {
		RespondError(c, "prune memories", err)
		return
	}
	SuccessResponse(c, "prune pass complete", gin.H{"pruned": count})
}
