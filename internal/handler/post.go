// Package handler implements the ledgerd HTTP API on top of gin.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/postledger/internal/identity"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"go.uber.org/zap"
)

// CreatePostRequest is the body of POST /posts. Both fields may be empty.
type CreatePostRequest struct {
	Title      string `json:"title"`
	ContentRef string `json:"content_ref"`
}

// PostHandler exposes the post ledger operations over HTTP.
type PostHandler struct {
	ledger postledger.Ledger
	logger *zap.Logger
	now    func() time.Time
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(ledger postledger.Ledger, logger *zap.Logger) *PostHandler {
	return &PostHandler{ledger: ledger, logger: logger, now: time.Now}
}

// SetClock overrides the timestamp source used for new posts.
func (h *PostHandler) SetClock(now func() time.Time) {
	h.now = now
}

// Register mounts the post routes on the given router group. requireCaller
// guards the write route.
func (h *PostHandler) Register(rg *gin.RouterGroup, requireCaller gin.HandlerFunc) {
	p := rg.Group("/posts")
	{
		p.POST("", requireCaller, h.CreatePost)
		p.GET("", h.ListPosts)
		p.GET("/count", h.Count)
		p.GET("/:id", h.GetPost)
	}
}

// CreatePost handles POST /posts.
func (h *PostHandler) CreatePost(c *gin.Context) {
	claims := identity.CallerClaimsFromCtx(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller token required"})
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	call := postledger.Call{Caller: claims.Address, Timestamp: h.now().Unix()}
	id, err := h.ledger.CreatePost(c.Request.Context(), call, req.Title, req.ContentRef)
	if err != nil {
		h.logger.Error("create post", zap.String("author", string(call.Caller)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}

	h.logger.Info("post created", zap.Uint64("id", id), zap.String("author", string(call.Caller)))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ListPosts handles GET /posts.
func (h *PostHandler) ListPosts(c *gin.Context) {
	posts, err := h.ledger.GetAllPosts(c.Request.Context())
	if err != nil {
		h.logger.Error("list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

// GetPost handles GET /posts/:id.
func (h *PostHandler) GetPost(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a non-negative integer"})
		return
	}

	post, err := h.ledger.GetPost(c.Request.Context(), id)
	if errors.Is(err, postledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	if err != nil {
		h.logger.Error("get post", zap.Uint64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get post"})
		return
	}
	c.JSON(http.StatusOK, post)
}

// Count handles GET /posts/count.
func (h *PostHandler) Count(c *gin.Context) {
	n, err := h.ledger.GetPostCount(c.Request.Context())
	if err != nil {
		h.logger.Error("count posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}
