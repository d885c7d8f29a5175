package restapi

import "github.com/gin-gonic/gin"

// stats handles GET /api/v1/stats.
func (s *Server) stats(c *gin.Context) {
	stats, err := s.engine.GetStats(c.Request.Context())
	if err != nil {
		RespondError(c, "get stats", err)
		return
	}
	SuccessResponse(c, "stats retrieved", gin.H{
		"node_count":      stats.NodeCount,
		"edge_count":      stats.EdgeCount,
		"mean_out_degree": stats.MeanOutDegree,
	})
}

// health handles GET /api/v1/health. It is always accessible, even behind
// API-key auth, so monitoring can tell the process is up without a key.
func (s *Server) health(c *gin.Context) {
	SuccessResponse(c, "ok", gin.H{"status": "healthy"})
}
