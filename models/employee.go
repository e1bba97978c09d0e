package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"gorm.io/gorm"
)

type Employee struct {
	ID             int    `gorm:"primary_key" json:"id"`
	Name           string `gorm:"size:255;not null;index" json:"name"`
	EmployeeNumber string `gorm:"size:100;uniqueIndex;not null" json:"employee_number"`
	Email          string `gorm:"size:255" json:"email"`
	Contact        string `gorm:"size:100" json:"contact"`
	Department     string `gorm:"size:255" json:"department"`
	Position       string `gorm:"size:255" json:"position"`
	Archivable
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Employee) ArchiveState() *Archivable { return &e.Archivable }
func (e *Employee) EntityId() int             { return e.ID }
func (e *Employee) EntityType() string        { return "Employee" }

type NewEmployee struct {
	Name           string `json:"name" binding:"required"`
	EmployeeNumber string `json:"employee_number" binding:"required"`
	Email          string `json:"email"`
	Contact        string `json:"contact"`
	Department     string `json:"department"`
	Position       string `json:"position"`
}

func CreateEmployee(ctx context.Context, input *NewEmployee) (*Employee, error) {
	count, err := utils.ResourceCountWhere[Employee](ctx, "employee_number = ?", input.EmployeeNumber)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("employee number is already registered")
	}
	employee := Employee{
		Name:           input.Name,
		EmployeeNumber: input.EmployeeNumber,
		Email:          input.Email,
		Contact:        input.Contact,
		Department:     input.Department,
		Position:       input.Position,
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&employee).Error; err != nil {
			return err
		}
		return createHistory(tx, HistoryActionCreate, employee.ID, employee.EntityType(),
			nil, &employee, "employee record created")
	})
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

func GetActiveEmployee(ctx context.Context, id int) (*Employee, error) {
	db := config.GetDB()
	var employee Employee
	if err := ActiveScope(db.WithContext(ctx)).First(&employee, id).Error; err != nil {
		return nil, errors.New("employee not found")
	}
	return &employee, nil
}

func GetEmployee(ctx context.Context, id int) (*Employee, error) {
	return utils.FetchModel[Employee](ctx, id)
}

func ListEmployees(ctx context.Context, archived bool) ([]*Employee, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Employee{}).Order("name")
	if archived {
		dbCtx = dbCtx.Where("archived_at IS NOT NULL")
	} else {
		dbCtx = ActiveScope(dbCtx)
	}
	var employees []*Employee
	if err := dbCtx.Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

func ArchiveEmployee(ctx context.Context, id int) (*Employee, error) {
	return ArchiveEntity[Employee](ctx, id, nil)
}

func RestoreEmployee(ctx context.Context, id int) (*Employee, error) {
	return RestoreEntity[Employee](ctx, id)
}
