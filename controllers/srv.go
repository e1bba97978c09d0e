package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"github.com/sirupsen/logrus"
)

// Srv carries the shared controller dependencies. Controllers are thin: they
// bind input, call the models/workflow layer and map errors to status codes.
type Srv struct {
	Logger *logrus.Logger
}

func GetSrv() *Srv {
	return &Srv{Logger: config.GetLogger()}
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors to HTTP responses. Typed errors carry the
// precise cause (ids, quantities, states) in their message, so clients always
// learn what was wrong, not just that something was.
func (s *Srv) respondError(c *gin.Context, err error) {
	var (
		insufficientStock  *models.InsufficientStockError
		capacityViolation  *models.CapacityViolationError
		invalidTransition  *models.InvalidStateTransitionError
		duplicateVerify    *models.DuplicateVerificationError
		alreadyResolved    *models.VerificationResolvedError
		archiveBlocked     *models.ArchiveBlockedError
		alreadyInspected   *models.AlreadyInspectedError
		consistencyFailure *models.ConsistencyViolationError
	)

	switch {
	case errors.As(err, &consistencyFailure):
		// Fail closed and page the operator; the client gets no detail beyond
		// the fact that the operation was refused.
		s.Logger.WithFields(logrus.Fields{
			"stock_unit_id": consistencyFailure.StockUnitId,
			"op":            consistencyFailure.Op,
		}).Error("consistency violation: " + consistencyFailure.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal consistency error, operation aborted"})
	case errors.As(err, &insufficientStock),
		errors.As(err, &capacityViolation),
		errors.As(err, &invalidTransition),
		errors.As(err, &duplicateVerify),
		errors.As(err, &alreadyResolved),
		errors.As(err, &archiveBlocked),
		errors.As(err, &alreadyInspected),
		errors.Is(err, models.ErrAlreadyArchived),
		errors.Is(err, models.ErrNotArchived):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
