package dummydb

import (
	"context"
	"strconv"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type studentRepository struct {
	db *table[student.Student]
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) CreateStudent(_ context.Context, stu student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.db.all() {
		if s.Code == stu.Code {
			return student.Student{}, student.ErrCodeExists
		}
	}
	repo.db.put(stu.ID, stu)
	return stu, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.get(id); ok {
		return s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByCode(_ context.Context, code string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.all() {
		if s.Code == code {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) MaxNumericCode(_ context.Context) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	max := 0
	for _, s := range repo.db.all() {
		if !core.IsDigits(s.Code) {
			continue
		}
		if n, err := strconv.Atoi(s.Code); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, stu student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	old, ok := repo.db.get(stu.ID)
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	stu.Code = old.Code
	stu.CreatedAt = old.CreatedAt
	repo.db.put(stu.ID, stu)
	return stu, nil
}
