// Package handler exposes the outreach module over HTTP.
package handler

import (
	"context"
	"net/http"

	"outreach_backend/internal/outreach/service"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// RunEnqueuer queues outreach work on the task queue.
type RunEnqueuer interface {
	EnqueueRun(ctx context.Context) error
	EnqueueLeadTrigger(ctx context.Context, leadID uuid.UUID, cause string) error
}

// Handler handles HTTP requests for the outreach module.
type Handler struct {
	svc      *service.Service
	val      *validator.Validator
	enqueuer RunEnqueuer
}

// New creates a new outreach handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SetRunEnqueuer makes POST /run and POST /leads/:id/trigger queue their
// work instead of running it inside the request.
func (h *Handler) SetRunEnqueuer(enqueuer RunEnqueuer) {
	h.enqueuer = enqueuer
}

// RegisterRoutes mounts the outreach routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.GetDashboard)
	rg.GET("/failures", h.ListFailures)
	rg.POST("/failures/:id/resolve", h.ResolveFailure)
	rg.POST("/leads/:id/trigger", h.TriggerLead)
	rg.POST("/run", h.Run)
}

// GetDashboard returns the read-only operator dashboard.
func (h *Handler) GetDashboard(c *gin.Context) {
	dash, err := h.svc.GetDashboard(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewDashboardResponse(dash))
}

// ListFailures returns open automation failures.
func (h *Handler) ListFailures(c *gin.Context) {
	failures, err := h.svc.ListFailures(c.Request.Context(), 50)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewFailureResponses(failures))
}

// ResolveFailure marks an automation failure as handled.
func (h *Handler) ResolveFailure(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if httpkit.HandleError(c, h.svc.ResolveFailure(c.Request.Context(), id)) {
		return
	}
	httpkit.OK(c, gin.H{"resolved": true})
}

// TriggerLead dispatches the earliest eligible follow-up for one lead. With
// a task queue attached the trigger is queued for the worker; otherwise it
// executes inside the request. The optional body records the operator's
// cause; it is logged, not acted on.
func (h *Handler) TriggerLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.TriggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	if h.enqueuer != nil {
		if err := h.enqueuer.EnqueueLeadTrigger(c.Request.Context(), leadID, req.Cause); err != nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "failed to queue trigger", nil)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": true})
		return
	}

	outcome, err := h.svc.TriggerLead(c.Request.Context(), leadID, req.Cause)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TriggerResponse{Result: outcome.Result, Cause: outcome.Cause})
}

// Run starts one outreach batch. With a task queue attached the run is
// queued for the worker; otherwise it executes inside the request.
func (h *Handler) Run(c *gin.Context) {
	if h.enqueuer != nil {
		if err := h.enqueuer.EnqueueRun(c.Request.Context()); err != nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "failed to queue run", nil)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": true})
		return
	}

	result, err := h.svc.Run(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewRunResponse(result))
}
