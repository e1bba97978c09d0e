package models

import (
	"context"
	"errors"
)

// BorrowerSnapshot is the cached display view of a borrower, embedded into
// circulation records at creation time. Borrower records may later change or
// be archived without invalidating historical transactions.
type BorrowerSnapshot struct {
	BorrowerType     BorrowerType `gorm:"size:20;not null;index" json:"borrower_type"`
	BorrowerId       int          `gorm:"index" json:"borrower_id"`
	BorrowerName     string       `gorm:"size:255;not null" json:"borrower_name"`
	BorrowerIdNumber string       `gorm:"size:100" json:"borrower_id_number"`
	BorrowerEmail    string       `gorm:"size:255" json:"borrower_email"`
	BorrowerContact  string       `gorm:"size:100" json:"borrower_contact"`
}

func (s *BorrowerSnapshot) Recipient() Recipient {
	return Recipient{Name: s.BorrowerName, Email: s.BorrowerEmail, Contact: s.BorrowerContact}
}

// BorrowerRef is the tagged borrower reference supplied by callers. For
// student/employee the record is looked up; for custom (walk-in) borrowers the
// display fields must be supplied inline.
type BorrowerRef struct {
	Type     BorrowerType `json:"type" binding:"required"`
	Id       int          `json:"id"`
	Name     string       `json:"name"`
	IdNumber string       `json:"id_number"`
	Email    string       `json:"email"`
	Contact  string       `json:"contact"`
}

// SnapshotBorrower resolves a borrower reference into cached display fields.
// Archived borrower records cannot take out new loans.
func SnapshotBorrower(ctx context.Context, ref BorrowerRef) (BorrowerSnapshot, error) {
	switch ref.Type {
	case BorrowerTypeStudent:
		student, err := GetActiveStudent(ctx, ref.Id)
		if err != nil {
			return BorrowerSnapshot{}, err
		}
		return BorrowerSnapshot{
			BorrowerType:     BorrowerTypeStudent,
			BorrowerId:       student.ID,
			BorrowerName:     student.Name,
			BorrowerIdNumber: student.StudentNumber,
			BorrowerEmail:    student.Email,
			BorrowerContact:  student.Contact,
		}, nil
	case BorrowerTypeEmployee:
		employee, err := GetActiveEmployee(ctx, ref.Id)
		if err != nil {
			return BorrowerSnapshot{}, err
		}
		return BorrowerSnapshot{
			BorrowerType:     BorrowerTypeEmployee,
			BorrowerId:       employee.ID,
			BorrowerName:     employee.Name,
			BorrowerIdNumber: employee.EmployeeNumber,
			BorrowerEmail:    employee.Email,
			BorrowerContact:  employee.Contact,
		}, nil
	case BorrowerTypeCustom:
		if ref.Name == "" {
			return BorrowerSnapshot{}, errors.New("custom borrower requires a name")
		}
		return BorrowerSnapshot{
			BorrowerType:     BorrowerTypeCustom,
			BorrowerName:     ref.Name,
			BorrowerIdNumber: ref.IdNumber,
			BorrowerEmail:    ref.Email,
			BorrowerContact:  ref.Contact,
		}, nil
	default:
		return BorrowerSnapshot{}, errors.New("invalid borrower type")
	}
}
