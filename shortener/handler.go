package shortener

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/xerrors"
)

// ShortenRequest POST /shorten 请求体
type ShortenRequest struct {
	OriginalURL string `json:"original_url" binding:"required"`
}

// Handler 短链接服务的 HTTP 入口
type Handler struct {
	svc    *Service
	logger clog.Logger
}

// NewHandler 创建 Handler
func NewHandler(svc *Service, logger clog.Logger) *Handler {
	if logger == nil {
		logger = clog.Discard()
	}
	return &Handler{
		svc:    svc,
		logger: logger.With(clog.String("component", "shortener.handler")),
	}
}

// RegisterRoutes 注册路由
// 重定向路由必须最后注册，避免遮蔽其他路径
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/shorten", h.Shorten)
	r.GET("/health", h.Health)
	r.GET("/:code", h.Redirect)
}

// Shorten POST /shorten
func (h *Handler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "original_url is required"})
		return
	}

	result, err := h.svc.Shorten(c.Request.Context(), req.OriginalURL)
	if err != nil {
		if xerrors.Is(err, ErrInvalidURL) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "original_url must be a valid http(s) url"})
			return
		}
		h.logger.Error("shorten failed", clog.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Redirect GET /:code
func (h *Handler) Redirect(c *gin.Context) {
	code := c.Param("code")

	originalURL, err := h.svc.Resolve(c.Request.Context(), code, ClickMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
		Referrer:  c.Request.Referer(),
	})
	if err != nil {
		if xerrors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Short URL not found"})
			return
		}
		h.logger.Error("resolve failed", clog.Error(err), clog.String("code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.Redirect(http.StatusMovedPermanently, originalURL)
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "shortener",
	})
}
