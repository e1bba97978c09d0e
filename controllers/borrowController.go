package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"github.com/mmdatafocus/lendstock_backend/workflow"
)

type BorrowController struct{ *Srv }

func NewBorrowController(s *Srv) *BorrowController { return &BorrowController{Srv: s} }

func (bc *BorrowController) Submit(c *gin.Context) {
	var input workflow.NewBorrowRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txn, err := workflow.SubmitBorrowRequest(c.Request.Context(), &input)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (bc *BorrowController) Approve(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	txn, err := workflow.ApproveBorrow(c.Request.Context(), id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

type rejectReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (bc *BorrowController) Reject(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req rejectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txn, err := workflow.RejectBorrow(c.Request.Context(), id, req.Reason)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// ReportReturn stages a return claim; stock stays reserved until a verifier
// resolves it.
func (bc *BorrowController) ReportReturn(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input workflow.ReportReturnInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	verification, err := workflow.ReportReturn(c.Request.Context(), id, &input)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, verification)
}

type declareLostReq struct {
	Notes string `json:"notes"`
}

func (bc *BorrowController) DeclareLost(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req declareLostReq
	_ = c.ShouldBindJSON(&req)
	txn, err := workflow.DeclareLost(c.Request.Context(), id, req.Notes)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (bc *BorrowController) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	txn, err := models.GetBorrowTransaction(c.Request.Context(), id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (bc *BorrowController) List(c *gin.Context) {
	filter := models.BorrowTransactionFilter{
		Status:       models.BorrowStatus(c.Query("status")),
		BorrowerType: models.BorrowerType(c.Query("borrower_type")),
	}
	if v := c.Query("stock_unit_id"); v != "" {
		filter.StockUnitId, _ = strconv.Atoi(v)
	}
	if v := c.Query("borrower_id"); v != "" {
		filter.BorrowerId, _ = strconv.Atoi(v)
	}
	txns, err := models.ListBorrowTransactions(c.Request.Context(), filter)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": txns})
}

func (bc *BorrowController) Histories(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := utils.ValidateResourceId[models.BorrowTransaction](c.Request.Context(), id); err != nil {
		bc.respondError(c, err)
		return
	}
	histories, err := models.GetHistories(c.Request.Context(), "BorrowTransaction", id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": histories})
}
