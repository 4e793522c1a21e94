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

// RuleHandler exposes rule and check administration routes. All routes in
// this handler sit behind the admin guard.
type RuleHandler struct {
	svc    *service.RuleService
	guard  *AdminGuard
	logger *zap.Logger
}

// NewRuleHandler creates a rule administration handler.
func NewRuleHandler(svc *service.RuleService, guard *AdminGuard, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{svc: svc, guard: guard, logger: logger}
}

// Register mounts the rule administration routes on the given router group.
func (h *RuleHandler) Register(rg *gin.RouterGroup) {
	rules := rg.Group("/rules")
	rules.Use(h.guard.Middleware())
	{
		rules.POST("", h.CreateRule)
		rules.GET("", h.ListRules)
		rules.GET("/:id", h.GetRule)
		rules.POST("/:id/activate", h.setRuleActive(true))
		rules.POST("/:id/deactivate", h.setRuleActive(false))
		rules.GET("/:id/checks", h.ListChecks)
		rules.POST("/:id/checks", h.AddCheck)
		rules.POST("/:id/evaluate", h.Evaluate)
	}

	checks := rg.Group("/checks")
	checks.Use(h.guard.Middleware())
	{
		checks.POST("/:id/activate", h.setCheckActive(true))
		checks.POST("/:id/deactivate", h.setCheckActive(false))
	}
}

// CreateRule handles POST /rules.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req model.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.svc.CreateRule(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("create rule failed", zap.String("data_key", req.DataKey), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create rule"})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// GetRule handles GET /rules/:id.
func (h *RuleHandler) GetRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rule, err := h.svc.GetRule(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		h.logger.Error("get rule failed", zap.Int64("rule_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// ListRules handles GET /rules.
func (h *RuleHandler) ListRules(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	limit, offset := parsePagination(c)

	rules, err := h.svc.ListRules(c.Request.Context(), includeInactive, limit, offset)
	if err != nil {
		h.logger.Error("list rules failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

// AddCheck handles POST /rules/:id/checks.
func (h *RuleHandler) AddCheck(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req model.AddCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	binding, err := h.svc.AddCheck(c.Request.Context(), id, &req)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, binding)
	case errors.Is(err, repository.ErrRuleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
	case errors.Is(err, service.ErrBadCheck):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("add check failed", zap.Int64("rule_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add check"})
	}
}

// ListChecks handles GET /rules/:id/checks.
func (h *RuleHandler) ListChecks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	checks, err := h.svc.ListChecks(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		h.logger.Error("list checks failed", zap.Int64("rule_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list checks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule_id": id, "checks": checks, "count": len(checks)})
}

// Evaluate handles POST /rules/:id/evaluate, a dry run that scores a payload
// against the rule without touching any task state.
func (h *RuleHandler) Evaluate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req model.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.svc.Evaluate(c.Request.Context(), id, []byte(req.Data))
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		h.logger.Error("evaluate failed", zap.Int64("rule_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *RuleHandler) setRuleActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := h.svc.SetRuleActive(c.Request.Context(), id, active); err != nil {
			if errors.Is(err, repository.ErrRuleNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
				return
			}
			h.logger.Error("set rule active failed", zap.Int64("rule_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update rule"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rule_id": id, "active": active})
	}
}

func (h *RuleHandler) setCheckActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := h.svc.SetCheckActive(c.Request.Context(), id, active); err != nil {
			if errors.Is(err, repository.ErrCheckNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "check not found"})
				return
			}
			h.logger.Error("set check active failed", zap.Int64("check_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update check"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"check_id": id, "active": active})
	}
}

// parseID reads the :id path parameter, writing a 400 response on failure.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
