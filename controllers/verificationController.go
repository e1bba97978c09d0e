package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/workflow"
)

type VerificationController struct{ *Srv }

func NewVerificationController(s *Srv) *VerificationController {
	return &VerificationController{Srv: s}
}

func (vc *VerificationController) ListOpen(c *gin.Context) {
	verifications, err := models.ListOpenReturnVerifications(c.Request.Context())
	if err != nil {
		vc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": verifications})
}

func (vc *VerificationController) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	verification, err := models.GetReturnVerification(c.Request.Context(), id)
	if err != nil {
		vc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

type resolveReq struct {
	Decision workflow.ResolveDecision `json:"decision" binding:"required"`
	Notes    string                   `json:"notes"`
}

// Resolve settles an open claim: verify credits stock back and closes the
// loan, reject reverts the loan so the borrower can report again.
func (vc *VerificationController) Resolve(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req resolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	verification, err := workflow.ResolveReturnVerification(
		c.Request.Context(), vc.Logger, id, req.Decision, req.Notes)
	if err != nil {
		vc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

func (vc *VerificationController) ListPendingInspections(c *gin.Context) {
	records, err := models.ListPendingInspections(c.Request.Context())
	if err != nil {
		vc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}

func (vc *VerificationController) GetReturnRecord(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	record, err := models.GetReturnRecord(c.Request.Context(), id)
	if err != nil {
		vc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Inspect records condition and fee exactly once per return record.
func (vc *VerificationController) Inspect(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input workflow.InspectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := workflow.InspectReturnRecord(c.Request.Context(), id, &input)
	if err != nil {
		vc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
