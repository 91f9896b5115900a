package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/student"
)

type studentRow struct {
	ID            string      `db:"id"`
	Code          string      `db:"code"`
	Name          string      `db:"name"`
	Phone         null.String `db:"phone"`
	GuardianName  null.String `db:"guardian_name"`
	GuardianPhone null.String `db:"guardian_phone"`
	GuardianEmail null.String `db:"guardian_email"`
	IsActive      bool        `db:"is_active"`
	CreatedAt     time.Time   `db:"created_at"`
}

func optString(s string) null.String {
	return null.NewString(s, s != "")
}

func toStudentRow(s student.Student) studentRow {
	return studentRow{
		ID:            s.ID,
		Code:          s.Code,
		Name:          s.Name,
		Phone:         optString(s.Phone),
		GuardianName:  optString(s.GuardianName),
		GuardianPhone: optString(s.GuardianPhone),
		GuardianEmail: optString(s.GuardianEmail),
		IsActive:      s.IsActive,
		CreatedAt:     s.CreatedAt.UTC(),
	}
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:            r.ID,
		Code:          r.Code,
		Name:          r.Name,
		Phone:         r.Phone.String,
		GuardianName:  r.GuardianName.String,
		GuardianPhone: r.GuardianPhone.String,
		GuardianEmail: r.GuardianEmail.String,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	row := toStudentRow(s)
	_, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO student (
			id, code, name, phone, guardian_name, guardian_phone, guardian_email, is_active, created_at
		) VALUES (
			:id, :code, :name, :phone, :guardian_name, :guardian_phone, :guardian_email, :is_active, :created_at
		)`, row)
	if err != nil {
		if isUniqueViolation(err, "student_code_key") {
			return student.Student{}, student.ErrCodeExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return row.student(), nil
}

func (repo *studentRepository) get(ctx context.Context, where string, arg interface{}) (student.Student, error) {
	var row studentRow
	err := getExec(ctx, repo.db).GetContext(ctx, &row, `SELECT * FROM student WHERE `+where+` = $1`, arg)
	if err != nil {
		return student.Student{}, notFound(err, student.ErrNotFound)
	}
	return row.student(), nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	return repo.get(ctx, "id", id)
}

func (repo *studentRepository) GetStudentByCode(ctx context.Context, code string) (student.Student, error) {
	return repo.get(ctx, "code", code)
}

func (repo *studentRepository) MaxNumericCode(ctx context.Context) (int, error) {
	var max int
	err := getExec(ctx, repo.db).GetContext(ctx, &max, `
		SELECT COALESCE(MAX(code::bigint), 0) FROM student WHERE code ~ '^[0-9]{1,18}$'`)
	if err != nil {
		return 0, errors.Wrap(err, "selecting max student code")
	}
	return max, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	row := toStudentRow(s)
	res, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE student SET
			name = :name, phone = :phone, guardian_name = :guardian_name,
			guardian_phone = :guardian_phone, guardian_email = :guardian_email, is_active = :is_active
		WHERE id = :id`, row)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudentByID(ctx, s.ID)
}
