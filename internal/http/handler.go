package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/lease-contracts/internal/http/middleware"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/rules"
	"github.com/nurpe/lease-contracts/internal/service"
)

type ContractAPI interface {
	Get(ctx context.Context, p model.Principal, id int64) (*model.Contract, error)
	Create(ctx context.Context, p model.Principal, input service.CreateContractInput) (*model.Contract, error)
	Update(ctx context.Context, p model.Principal, id int64, input service.UpdateContractInput) (*model.Contract, error)
	UpdateClauses(ctx context.Context, p model.Principal, id int64, clauses, ip string) (*model.Contract, error)
	ClauseHistory(ctx context.Context, p model.Principal, id int64) ([]model.ClauseHistoryEntry, error)
	Delete(ctx context.Context, p model.Principal, id int64) error
	Amend(ctx context.Context, p model.Principal, id int64, input service.AmendInput) (*model.Contract, error)
	Activate(ctx context.Context, p model.Principal, id int64) (*model.Contract, error)
	Terminate(ctx context.Context, p model.Principal, id int64, reason string) (*model.Contract, error)
	Document(ctx context.Context, p model.Principal, id int64, stage model.DocumentStage) ([]byte, error)
}

type SigningAPI interface {
	PrepareForSigning(ctx context.Context, p model.Principal, id int64, ip string) (*service.PrepareResult, error)
	Sign(ctx context.Context, p model.Principal, input service.SignInput) (*service.SignResult, error)
	Finalize(ctx context.Context, p model.Principal, id int64, ip string) (*service.SignResult, error)
	Revoke(ctx context.Context, p model.Principal, id int64, reason string) (*model.Contract, error)
}

type LifecycleAPI interface {
	CreateEvent(ctx context.Context, input service.CreateEventInput) (*model.LifecycleEvent, error)
	GetContractTimeline(ctx context.Context, contractID int64) ([]model.LifecycleEvent, error)
	CheckRentAdjustment(ctx context.Context, contractID int64) (*service.RentAdjustmentCheck, error)
	CheckTacitRenewal(ctx context.Context, contractID int64) (*service.TacitRenewalCheck, error)
	CalculateProportionalPenalty(ctx context.Context, contractID int64, terminationDate time.Time) (*rules.Penalty, error)
	RecordRentAdjustment(ctx context.Context, p model.Principal, contractID int64, percent float64) (*model.LifecycleEvent, error)
	RecordTerminationNotice(ctx context.Context, p model.Principal, contractID int64, eventType model.EventType, description string) (*model.LifecycleEvent, error)
}

type RulesAPI interface {
	ApplyRules(ctx context.Context, p model.Principal, id int64) (*service.AppliedRules, error)
	CheckJudicialReadiness(ctx context.Context, p model.Principal, id int64) (*rules.Readiness, error)
	AutomaticClauses(ctx context.Context, p model.Principal, id int64) ([]string, error)
}

type LegalAPI interface {
	DetectDefault(ctx context.Context, p model.Principal, id int64) (*model.DefaultDetection, error)
	GenerateNotice(ctx context.Context, p model.Principal, id int64) (*model.DefaultNotice, error)
	CreateAgreementProposal(ctx context.Context, p model.Principal, id int64, input service.AgreementInput) (*model.AgreementProposal, error)
	PrepareJudicial(ctx context.Context, p model.Principal, id int64) (*model.JudicialDossier, error)
	ExecuteCompleteFlow(ctx context.Context, p model.Principal, id int64, input service.AgreementInput) (*model.FlowResult, error)
	ExportDossier(ctx context.Context, p model.Principal, id int64, format string) ([]byte, string, error)
}

type Services struct {
	Contracts ContractAPI
	Signing   SigningAPI
	Lifecycle LifecycleAPI
	Rules     RulesAPI
	Legal     LegalAPI
}

type Handler struct {
	svc Services
	log zerolog.Logger
}

func NewHandler(svc Services, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts every contract route behind auth. Signing routes also pass
// through signLimit.
func (h *Handler) Register(router *gin.Engine, authMiddleware, signLimit gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts/:id", h.getContract)
	protected.PATCH("/contracts/:id", h.updateContract)
	protected.DELETE("/contracts/:id", h.deleteContract)
	protected.PUT("/contracts/:id/clauses", h.updateClauses)
	protected.GET("/contracts/:id/clauses/history", h.clauseHistory)
	protected.POST("/contracts/:id/amendments", h.amendContract)
	protected.POST("/contracts/:id/activate", h.activateContract)
	protected.POST("/contracts/:id/terminate", h.terminateContract)
	protected.GET("/contracts/:id/documents/:stage", h.downloadDocument)

	protected.POST("/contracts/:id/prepare", h.prepareForSigning)
	protected.POST("/contracts/:id/signatures", signLimit, h.signContract)
	protected.POST("/contracts/:id/finalize", signLimit, h.finalizeContract)
	protected.POST("/contracts/:id/revoke", h.revokeContract)

	protected.GET("/contracts/:id/events", h.listEvents)
	protected.POST("/contracts/:id/events", h.createEvent)
	protected.GET("/contracts/:id/rent-adjustment", h.checkRentAdjustment)
	protected.POST("/contracts/:id/rent-adjustment", h.recordRentAdjustment)
	protected.GET("/contracts/:id/tacit-renewal", h.checkTacitRenewal)
	protected.POST("/contracts/:id/termination-notices", h.recordTerminationNotice)
	protected.GET("/contracts/:id/penalty", h.proportionalPenalty)

	protected.GET("/contracts/:id/rules", h.applyRules)
	protected.GET("/contracts/:id/judicial-readiness", h.judicialReadiness)
	protected.GET("/contracts/:id/automatic-clauses", h.automaticClauses)

	legal := protected.Group("/contracts/:id/legal")
	legal.GET("/default", h.detectDefault)
	legal.POST("/notice", h.generateNotice)
	legal.POST("/agreement", h.proposeAgreement)
	legal.POST("/judicial", h.prepareJudicial)
	legal.POST("/flow", h.executeFlow)
	legal.GET("/dossier", h.exportDossier)
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req service.CreateContractInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contract, err := h.svc.Contracts.Create(c.Request.Context(), principal, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *Handler) getContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	contract, err := h.svc.Contracts.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) updateContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	var req service.UpdateContractInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contract, err := h.svc.Contracts.Update(c.Request.Context(), principal, id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) deleteContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.svc.Contracts.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type clausesRequest struct {
	Clauses string `json:"clauses" binding:"required"`
}

func (h *Handler) updateClauses(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	var req clausesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contract, err := h.svc.Contracts.UpdateClauses(c.Request.Context(), principal, id, req.Clauses, c.ClientIP())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) clauseHistory(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	history, err := h.svc.Contracts.ClauseHistory(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) amendContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	var req service.AmendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contract, err := h.svc.Contracts.Amend(c.Request.Context(), principal, id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *Handler) activateContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	contract, err := h.svc.Contracts.Activate(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) terminateContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contract, err := h.svc.Contracts.Terminate(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) downloadDocument(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	stage := model.DocumentStage(strings.ToUpper(strings.TrimSpace(c.Param("stage"))))
	if stage != model.DocumentProvisional && stage != model.DocumentFinal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document stage"})
		return
	}
	data, err := h.svc.Contracts.Document(c.Request.Context(), principal, id, stage)
	if err != nil {
		h.handleError(c, err)
		return
	}
	fileName := "contract-" + strconv.FormatInt(id, 10) + "-" + strings.ToLower(string(stage)) + ".pdf"
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) prepareForSigning(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Signing.PrepareForSigning(c.Request.Context(), principal, id, c.ClientIP())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type signRequest struct {
	Role        model.SignerRole   `json:"role" binding:"required"`
	Image       string             `json:"image" binding:"required"`
	Geolocation *model.Geolocation `json:"geolocation"`
}

func (h *Handler) signContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.svc.Signing.Sign(c.Request.Context(), principal, service.SignInput{
		ContractID:  id,
		Role:        model.SignerRole(strings.ToLower(strings.TrimSpace(string(req.Role)))),
		Image:       req.Image,
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Geolocation: req.Geolocation,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) finalizeContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Signing.Finalize(c.Request.Context(), principal, id, c.ClientIP())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) revokeContract(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contract, err := h.svc.Signing.Revoke(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return principal, ok
}

// target resolves the caller and the :id path parameter.
func (h *Handler) target(c *gin.Context) (model.Principal, int64, bool) {
	principal, ok := h.principal(c)
	if !ok {
		return model.Principal{}, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return model.Principal{}, 0, false
	}
	return principal, id, true
}
