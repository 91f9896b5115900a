package student

import (
	"time"

	"github.com/trezcool/mahudhurio/core"
)

type (
	Student struct {
		ID            string    `json:"id"`
		Code          string    `json:"code"`
		Name          string    `json:"name"`
		Phone         string    `json:"phone,omitempty"`
		GuardianName  string    `json:"guardian_name,omitempty"`
		GuardianPhone string    `json:"guardian_phone,omitempty"`
		GuardianEmail string    `json:"guardian_email,omitempty"`
		IsActive      bool      `json:"is_active"`
		CreatedAt     time.Time `json:"created_at"`
	}

	NewStudent struct {
		Code          string `json:"code" validate:"studentcode,max=16"` // auto-assigned when empty
		Name          string `json:"name" validate:"required,notblank"`
		Phone         string `json:"phone"`
		GuardianName  string `json:"guardian_name"`
		GuardianPhone string `json:"guardian_phone"`
		GuardianEmail string `json:"guardian_email" validate:"omitempty,email"`
	}
)

// Guardian is who gets notified about the student.
func (s Student) Guardian() core.Contact {
	name := s.GuardianName
	if name == "" {
		name = s.Name
	}
	return core.Contact{Name: name, Phone: s.GuardianPhone, Email: s.GuardianEmail}
}
