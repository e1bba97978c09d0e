package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"gorm.io/gorm"
)

type Student struct {
	ID            int    `gorm:"primary_key" json:"id"`
	Name          string `gorm:"size:255;not null;index" json:"name"`
	StudentNumber string `gorm:"size:100;uniqueIndex;not null" json:"student_number"`
	Email         string `gorm:"size:255" json:"email"`
	Contact       string `gorm:"size:100" json:"contact"`
	Course        string `gorm:"size:255" json:"course"`
	Archivable
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Student) ArchiveState() *Archivable { return &s.Archivable }
func (s *Student) EntityId() int             { return s.ID }
func (s *Student) EntityType() string        { return "Student" }

type NewStudent struct {
	Name          string `json:"name" binding:"required"`
	StudentNumber string `json:"student_number" binding:"required"`
	Email         string `json:"email"`
	Contact       string `json:"contact"`
	Course        string `json:"course"`
}

func CreateStudent(ctx context.Context, input *NewStudent) (*Student, error) {
	count, err := utils.ResourceCountWhere[Student](ctx, "student_number = ?", input.StudentNumber)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("student number is already registered")
	}
	student := Student{
		Name:          input.Name,
		StudentNumber: input.StudentNumber,
		Email:         input.Email,
		Contact:       input.Contact,
		Course:        input.Course,
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&student).Error; err != nil {
			return err
		}
		return createHistory(tx, HistoryActionCreate, student.ID, student.EntityType(),
			nil, &student, "student record created")
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// GetActiveStudent fetches a student, excluding archived records (an archived
// borrower cannot take out new loans).
func GetActiveStudent(ctx context.Context, id int) (*Student, error) {
	db := config.GetDB()
	var student Student
	if err := ActiveScope(db.WithContext(ctx)).First(&student, id).Error; err != nil {
		return nil, errors.New("student not found")
	}
	return &student, nil
}

func GetStudent(ctx context.Context, id int) (*Student, error) {
	return utils.FetchModel[Student](ctx, id)
}

func ListStudents(ctx context.Context, archived bool) ([]*Student, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Student{}).Order("name")
	if archived {
		dbCtx = dbCtx.Where("archived_at IS NOT NULL")
	} else {
		dbCtx = ActiveScope(dbCtx)
	}
	var students []*Student
	if err := dbCtx.Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func ArchiveStudent(ctx context.Context, id int) (*Student, error) {
	return ArchiveEntity[Student](ctx, id, nil)
}

func RestoreStudent(ctx context.Context, id int) (*Student, error) {
	return RestoreEntity[Student](ctx, id)
}
