package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/repository"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/service"
	"github.com/xiangxiecrypto/veritas-sub001/internal/identity"
)

// AttestationHandler ingests completion callbacks from the attestation
// network and hands them to the task processor.
type AttestationHandler struct {
	processor *service.TaskProcessor
	verifier  *identity.NetworkTokenVerifier
	logger    *zap.Logger
}

// NewAttestationHandler creates an attestation callback handler.
func NewAttestationHandler(processor *service.TaskProcessor, logger *zap.Logger) *AttestationHandler {
	return &AttestationHandler{processor: processor, logger: logger}
}

// SetTokenVerifier installs the callback token verifier. A nil verifier
// leaves the callback route unauthenticated. Must be called before Register.
func (h *AttestationHandler) SetTokenVerifier(v *identity.NetworkTokenVerifier) {
	h.verifier = v
}

// Register mounts the attestation routes on the given router group.
func (h *AttestationHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/attestations/callback", identity.RequireNetworkToken(h.verifier), h.Callback)
}

// callbackRequest is the wire shape of a completion callback. The success
// flag is a pointer so that explicit false survives required-field binding.
type callbackRequest struct {
	TaskID    string `json:"task_id"   binding:"required"`
	Recipient string `json:"recipient"`
	Data      string `json:"data"      binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Success   *bool  `json:"success"   binding:"required"`
}

// Callback handles POST /attestations/callback.
func (h *AttestationHandler) Callback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := model.ParseTaskID(req.TaskID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := &model.CompletionEvent{
		AttestationPayload: model.AttestationPayload{
			TaskID:    id,
			Recipient: req.Recipient,
			Data:      []byte(req.Data),
			Timestamp: model.NormalizeTimestamp(req.Timestamp),
		},
		Success: *req.Success,
	}

	task, err := h.processor.HandleCompletion(c.Request.Context(), ev)
	switch {
	case err == nil:
		RecordCallback("processed")
		if task.Score != nil {
			ObserveScore(*task.Score)
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "processed", "task": task})
	case errors.Is(err, service.ErrAlreadyProcessed):
		RecordCallback("already_processed")
		c.JSON(http.StatusOK, gin.H{"status": "already_processed", "task": task})
	case errors.Is(err, service.ErrAttestationFailed):
		RecordCallback("attestation_failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRuleInactive), errors.Is(err, service.ErrStalePayload):
		RecordCallback("rejected")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrTaskNotFound):
		RecordCallback("unknown_task")
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	default:
		RecordCallback("error")
		h.logger.Error("completion processing failed",
			zap.String("task_id", req.TaskID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "completion processing failed"})
	}
}
