package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/journal"
)

// JournalHandler exposes read-only views over the completion journal.
type JournalHandler struct {
	journal journal.Journal
	logger  *zap.Logger
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(j journal.Journal, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{journal: j, logger: logger}
}

// Register mounts the journal routes on the given router group.
func (h *JournalHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/journal", h.Overview)
	rg.GET("/journal/verify", h.Verify)
	rg.GET("/journal/entries/:index", h.GetEntry)
}

// Overview handles GET /journal.
func (h *JournalHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	length, err := h.journal.Len(ctx)
	if err != nil {
		h.logger.Error("journal length failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read journal"})
		return
	}
	root, err := h.journal.Root(ctx)
	if err != nil {
		h.logger.Error("journal root failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read journal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": length, "root": root})
}

// Verify handles GET /journal/verify. It walks the full chain, so expect it
// to be slow on large journals.
func (h *JournalHandler) Verify(c *gin.Context) {
	if err := h.journal.Verify(c.Request.Context()); err != nil {
		h.logger.Error("journal verification failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// GetEntry handles GET /journal/entries/:index.
func (h *JournalHandler) GetEntry(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}

	ctx := c.Request.Context()
	length, err := h.journal.Len(ctx)
	if err != nil {
		h.logger.Error("journal length failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read journal"})
		return
	}
	if index >= length {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	entry, err := h.journal.Get(ctx, index)
	if err != nil {
		h.logger.Error("journal get failed", zap.Int("index", index), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read journal"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
