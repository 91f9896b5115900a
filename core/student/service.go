package student

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

// FirstCode is the first auto-assigned student code.
const FirstCode = 1001

var (
	ErrNotFound   = core.NewNotFoundError("student")
	ErrCodeExists = errors.New("a student with this code already exists")

	// NowFunc is mockable in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		// CreateStudent fails with ErrCodeExists when the code is taken.
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByCode(ctx context.Context, code string) (Student, error)
		// MaxNumericCode returns the highest all-digits code in use, 0 if none.
		MaxNumericCode(ctx context.Context) (int, error)
		// UpdateStudent never changes the code.
		UpdateStudent(ctx context.Context, s Student) (Student, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a student. A missing code is auto-assigned as the next sequential number.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	code := core.CleanString(ns.Code)
	if code != "" && !core.IsDigits(code) {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "code", Error: "code must contain digits only"})
	}
	stu := Student{
		ID:            uuid.NewString(),
		Code:          code,
		Name:          core.CleanString(ns.Name),
		Phone:         core.CleanString(ns.Phone),
		GuardianName:  core.CleanString(ns.GuardianName),
		GuardianPhone: core.CleanString(ns.GuardianPhone),
		GuardianEmail: core.CleanString(ns.GuardianEmail, true /* lower */),
		IsActive:      true,
		CreatedAt:     NowFunc().UTC(),
	}

	if code != "" {
		return svc.create(ctx, stu)
	}

	// another registration may grab the same number between reading the max and inserting
	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if stu.Code, err = svc.nextCode(ctx); err != nil {
			return Student{}, err
		}
		var created Student
		if created, err = svc.repo.CreateStudent(ctx, stu); err == nil {
			return created, nil
		}
		if errors.Cause(err) != ErrCodeExists {
			return Student{}, err
		}
	}
	return Student{}, errors.Wrap(err, "assigning student code")
}

func (svc *Service) create(ctx context.Context, stu Student) (Student, error) {
	created, err := svc.repo.CreateStudent(ctx, stu)
	if errors.Cause(err) == ErrCodeExists {
		return Student{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
	}
	return created, err
}

func (svc *Service) nextCode(ctx context.Context) (string, error) {
	max, err := svc.repo.MaxNumericCode(ctx)
	if err != nil {
		return "", errors.Wrap(err, "reading max student code")
	}
	next := max + 1
	if next < FirstCode {
		next = FirstCode
	}
	return strconv.Itoa(next), nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) GetByCode(ctx context.Context, code string) (Student, error) {
	return svc.repo.GetStudentByCode(ctx, core.CleanString(code))
}

func (svc *Service) Deactivate(ctx context.Context, id string) (Student, error) {
	stu, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !stu.IsActive {
		return stu, nil
	}
	stu.IsActive = false
	return svc.repo.UpdateStudent(ctx, stu)
}
