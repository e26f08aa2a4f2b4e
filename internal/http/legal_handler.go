package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/lease-contracts/internal/service"
)

func (h *Handler) detectDefault(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	detection, err := h.svc.Legal.DetectDefault(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, detection)
}

func (h *Handler) generateNotice(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	notice, err := h.svc.Legal.GenerateNotice(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

// bindAgreement accepts an empty body as the default agreement terms.
func bindAgreement(c *gin.Context) (service.AgreementInput, error) {
	var req service.AgreementInput
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

func (h *Handler) proposeAgreement(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	req, err := bindAgreement(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	proposal, err := h.svc.Legal.CreateAgreementProposal(c.Request.Context(), principal, id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

func (h *Handler) prepareJudicial(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	dossier, err := h.svc.Legal.PrepareJudicial(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dossier)
}

func (h *Handler) executeFlow(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	req, err := bindAgreement(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.svc.Legal.ExecuteCompleteFlow(c.Request.Context(), principal, id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) exportDossier(c *gin.Context) {
	principal, id, ok := h.target(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", service.FormatPDF)
	data, contentType, err := h.svc.Legal.ExportDossier(c.Request.Context(), principal, id, format)
	if err != nil {
		h.handleError(c, err)
		return
	}
	ext := service.FormatPDF
	if contentType != "application/pdf" {
		ext = service.FormatXLSX
	}
	fileName := "dossier-" + strconv.FormatInt(id, 10) + "." + ext
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, contentType, data)
}
