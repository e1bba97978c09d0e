package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/utils"
)

type StockUnitController struct{ *Srv }

func NewStockUnitController(s *Srv) *StockUnitController { return &StockUnitController{Srv: s} }

// Create is stock-in: the new unit starts fully available.
func (sc *StockUnitController) Create(c *gin.Context) {
	var input models.NewStockUnit
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := models.CreateStockUnit(c.Request.Context(), &input)
	if err != nil {
		sc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func (sc *StockUnitController) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	unit, err := models.GetStockUnit(c.Request.Context(), id)
	if err != nil {
		sc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (sc *StockUnitController) List(c *gin.Context) {
	filter := models.StockUnitFilter{
		Status:   models.StockStatus(c.Query("status")),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Archived: utils.NewFalse(),
	}
	if c.Query("archived") == "true" {
		filter.Archived = utils.NewTrue()
	}
	units, err := models.ListStockUnits(c.Request.Context(), filter)
	if err != nil {
		sc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": units})
}

func (sc *StockUnitController) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.UpdateStockUnitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := models.UpdateStockUnit(c.Request.Context(), id, &input)
	if err != nil {
		sc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

type adjustCapacityReq struct {
	NewTotal *int   `json:"new_total" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// AdjustCapacity resizes TotalQty; shrinking below the reserved quantity fails
// with a conflict.
func (sc *StockUnitController) AdjustCapacity(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req adjustCapacityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := models.AdjustCapacity(c.Request.Context(), id, utils.DereferencePtr(req.NewTotal), req.Reason)
	if err != nil {
		sc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (sc *StockUnitController) Archive(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	unit, err := models.ArchiveStockUnit(c.Request.Context(), id)
	if err != nil {
		sc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (sc *StockUnitController) Restore(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	unit, err := models.RestoreStockUnit(c.Request.Context(), id)
	if err != nil {
		sc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

// Histories returns the audit trail of one stock unit, oldest first.
func (sc *StockUnitController) Histories(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := utils.ValidateResourceId[models.StockUnit](c.Request.Context(), id); err != nil {
		sc.respondError(c, err)
		return
	}
	histories, err := models.GetHistories(c.Request.Context(), "StockUnit", id)
	if err != nil {
		sc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": histories})
}
