package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/policy"
	"github.com/nurpe/lease-contracts/internal/service"
)

// visible runs the contract visibility check for routes whose service
// operation is not principal-aware.
func (h *Handler) visible(c *gin.Context) (model.Principal, int64, bool) {
	principal, id, ok := h.target(c)
	if !ok {
		return model.Principal{}, 0, false
	}
	if _, err := h.svc.Contracts.Get(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return model.Principal{}, 0, false
	}
	return principal, id, true
}

func (h *Handler) listEvents(c *gin.Context) {
	_, id, ok := h.visible(c)
	if !ok {
		return
	}
	events, err := h.svc.Lifecycle.GetContractTimeline(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if events == nil {
		events = []model.LifecycleEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type createEventRequest struct {
	Type            model.EventType        `json:"type" binding:"required"`
	Description     string                 `json:"description" binding:"required"`
	Metadata        map[string]any         `json:"metadata"`
	FinancialEffect *model.FinancialEffect `json:"financial_effect"`
}

func (h *Handler) createEvent(c *gin.Context) {
	principal, id, ok := h.visible(c)
	if !ok {
		return
	}
	if !policy.CapabilitiesFor(principal.Role).CanEdit {
		h.handleError(c, service.ErrPermissionDenied)
		return
	}
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event, err := h.svc.Lifecycle.CreateEvent(c.Request.Context(), service.CreateEventInput{
		ContractID:      id,
		Type:            model.EventType(strings.ToUpper(strings.TrimSpace(string(req.Type)))),
		Description:     req.Description,
		Metadata:        req.Metadata,
		CreatedBy:       strconv.FormatInt(principal.UserID, 10),
		FinancialEffect: req.FinancialEffect,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) checkRentAdjustment(c *gin.Context) {
	_, id, ok := h.visible(c)
	if !ok {
		return
	}
	check, err := h.svc.Lifecycle.CheckRentAdjustment(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

type rentAdjustmentRequest struct {
	Percent *float64 `json:"percent" binding:"required"`
}

func (h *Handler) recordRentAdjustment(c *gin.Context) {
	principal, id, ok := h.visible(c)
	if !ok {
		return
	}
	if !policy.CapabilitiesFor(principal.Role).CanEdit {
		h.handleError(c, service.ErrPermissionDenied)
		return
	}
	var req rentAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event, err := h.svc.Lifecycle.RecordRentAdjustment(c.Request.Context(), principal, id, *req.Percent)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) checkTacitRenewal(c *gin.Context) {
	_, id, ok := h.visible(c)
	if !ok {
		return
	}
	check, err := h.svc.Lifecycle.CheckTacitRenewal(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

type terminationNoticeRequest struct {
	Type        model.EventType `json:"type" binding:"required"`
	Description string          `json:"description" binding:"required"`
}

func (h *Handler) recordTerminationNotice(c *gin.Context) {
	principal, id, ok := h.visible(c)
	if !ok {
		return
	}
	var req terminationNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eventType := model.EventType(strings.ToUpper(strings.TrimSpace(string(req.Type))))
	event, err := h.svc.Lifecycle.RecordTerminationNotice(c.Request.Context(), principal, id, eventType, req.Description)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) proportionalPenalty(c *gin.Context) {
	_, id, ok := h.visible(c)
	if !ok {
		return
	}
	var terminationDate time.Time
	if raw := c.Query("termination_date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid termination_date"})
			return
		}
		terminationDate = parsed
	}
	penalty, err := h.svc.Lifecycle.CalculateProportionalPenalty(c.Request.Context(), id, terminationDate)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, penalty)
}

func (h *Handler) applyRules(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	applied, err := h.svc.Rules.ApplyRules(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, applied)
}

func (h *Handler) judicialReadiness(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	readiness, err := h.svc.Rules.CheckJudicialReadiness(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, readiness)
}

func (h *Handler) automaticClauses(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	clauses, err := h.svc.Rules.AutomaticClauses(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clauses": clauses})
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
