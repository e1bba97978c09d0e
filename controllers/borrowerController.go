package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lendstock_backend/models"
)

// BorrowerController serves the borrower directory (students and employees).
// Custom borrowers have no directory record; their details ride inline on the
// borrow request.
type BorrowerController struct{ *Srv }

func NewBorrowerController(s *Srv) *BorrowerController { return &BorrowerController{Srv: s} }

/* students */

func (bc *BorrowerController) CreateStudent(c *gin.Context) {
	var input models.NewStudent
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	student, err := models.CreateStudent(c.Request.Context(), &input)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, student)
}

func (bc *BorrowerController) GetStudent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	student, err := models.GetStudent(c.Request.Context(), id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (bc *BorrowerController) ListStudents(c *gin.Context) {
	students, err := models.ListStudents(c.Request.Context(), c.Query("archived") == "true")
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": students})
}

func (bc *BorrowerController) ArchiveStudent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	student, err := models.ArchiveStudent(c.Request.Context(), id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (bc *BorrowerController) RestoreStudent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	student, err := models.RestoreStudent(c.Request.Context(), id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

/* employees */

func (bc *BorrowerController) CreateEmployee(c *gin.Context) {
	var input models.NewEmployee
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	employee, err := models.CreateEmployee(c.Request.Context(), &input)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

func (bc *BorrowerController) GetEmployee(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	employee, err := models.GetEmployee(c.Request.Context(), id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func (bc *BorrowerController) ListEmployees(c *gin.Context) {
	employees, err := models.ListEmployees(c.Request.Context(), c.Query("archived") == "true")
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": employees})
}

func (bc *BorrowerController) ArchiveEmployee(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	employee, err := models.ArchiveEmployee(c.Request.Context(), id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func (bc *BorrowerController) RestoreEmployee(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	employee, err := models.RestoreEmployee(c.Request.Context(), id)
	if err != nil {
		bc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}
