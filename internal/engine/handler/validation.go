package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/repository"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/service"
)

// ValidationHandler exposes validation lifecycle routes: opening a
// validation task and querying task state.
type ValidationHandler struct {
	svc    *service.ValidationService
	logger *zap.Logger
}

// NewValidationHandler creates a validation handler.
func NewValidationHandler(svc *service.ValidationService, logger *zap.Logger) *ValidationHandler {
	return &ValidationHandler{svc: svc, logger: logger}
}

// Register mounts the validation routes on the given router group.
func (h *ValidationHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/validations", h.OpenValidation)
	rg.GET("/tasks/:id", h.GetTask)
	rg.GET("/subjects/:subject/tasks", h.ListSubjectTasks)
}

// OpenValidation handles POST /validations.
func (h *ValidationHandler) OpenValidation(c *gin.Context) {
	var req model.OpenValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.svc.Open(c.Request.Context(), &req)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, task)
	case errors.Is(err, repository.ErrRuleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
	case errors.Is(err, service.ErrRuleInactive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.logger.Error("open validation failed",
			zap.Int64("rule_id", req.RuleID),
			zap.String("subject", req.Subject),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open validation"})
	}
}

// GetTask handles GET /tasks/:id.
func (h *ValidationHandler) GetTask(c *gin.Context) {
	id, err := model.ParseTaskID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.svc.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("get task failed", zap.String("task_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListSubjectTasks handles GET /subjects/:subject/tasks.
func (h *ValidationHandler) ListSubjectTasks(c *gin.Context) {
	subject := c.Param("subject")
	limit, offset := parsePagination(c)

	tasks, err := h.svc.ListBySubject(c.Request.Context(), subject, limit, offset)
	if err != nil {
		h.logger.Error("list subject tasks failed", zap.String("subject", subject), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": subject, "tasks": tasks, "count": len(tasks)})
}

// parsePagination reads limit/offset query parameters with sane bounds.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
