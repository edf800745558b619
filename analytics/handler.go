package analytics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/xerrors"
)

// StatsProvider 统计查询接口，生产实现为 StatsService
type StatsProvider interface {
	GetStats(ctx context.Context, code string) (*URLStats, error)
}

// Handler 统计服务的 HTTP 入口
type Handler struct {
	stats  StatsProvider
	logger clog.Logger
}

// NewHandler 创建统计服务 Handler
func NewHandler(stats StatsProvider, logger clog.Logger) *Handler {
	if logger == nil {
		logger = clog.Discard()
	}
	return &Handler{
		stats:  stats,
		logger: logger.With(clog.String("component", "analytics.handler")),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/stats/:code", h.GetStats)
	r.GET("/health", h.Health)
}

// GetStats GET /stats/:code
func (h *Handler) GetStats(c *gin.Context) {
	code := c.Param("code")

	stats, err := h.stats.GetStats(c.Request.Context(), code)
	if err != nil {
		if xerrors.Is(err, ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{
				"detail": fmt.Sprintf("No analytics data found for code: %s", code),
			})
			return
		}
		h.logger.Error("stats lookup failed", clog.Error(err), clog.String("code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "analytics",
	})
}
