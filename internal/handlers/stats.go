package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/services"
)

type StatsHandler struct {
	log          *logger.Logger
	statsService services.StatsService
}

func NewStatsHandler(log *logger.Logger, statsService services.StatsService) *StatsHandler {
	handlerLog := log.With("handler", "StatsHandler")
	return &StatsHandler{log: handlerLog, statsService: statsService}
}

// GetStats serves the dashboard rollup. Eventually consistent: a commit may
// take up to the cache window to show here.
func (sh *StatsHandler) GetStats(c *gin.Context) {
	stats, err := sh.statsService.GetStats(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, stats)
}

func (sh *StatsHandler) RecentActivity(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	events, err := sh.statsService.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, events)
}
