package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
)

// bufferMinutes mirrors the buffer baked into the class_group_room_overlap constraint.
const bufferMinutes = 15

type (
	roomRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		Capacity  int       `db:"capacity"`
		IsActive  bool      `db:"is_active"`
		CreatedAt time.Time `db:"created_at"`
	}

	teacherRow struct {
		ID        string      `db:"id"`
		Name      string      `db:"name"`
		Phone     null.String `db:"phone"`
		Email     null.String `db:"email"`
		IsActive  bool        `db:"is_active"`
		CreatedAt time.Time   `db:"created_at"`
	}

	groupRow struct {
		ID               string          `db:"id"`
		Name             string          `db:"name"`
		TeacherID        string          `db:"teacher_id"`
		RoomID           null.String     `db:"room_id"`
		Day              int             `db:"day"`
		StartMinute      int             `db:"start_minute"`
		DurationMinutes  int             `db:"duration_minutes"`
		Fee              decimal.Decimal `db:"fee"`
		IsActive         bool            `db:"is_active"`
		ConflictOverride bool            `db:"conflict_override"`
		CreatedAt        time.Time       `db:"created_at"`
		UpdatedAt        time.Time       `db:"updated_at"`
	}
)

func (r roomRow) room() schedule.Room {
	return schedule.Room{ID: r.ID, Name: r.Name, Capacity: r.Capacity, IsActive: r.IsActive, CreatedAt: r.CreatedAt}
}

func (r teacherRow) teacher() schedule.Teacher {
	return schedule.Teacher{
		ID:        r.ID,
		Name:      r.Name,
		Phone:     r.Phone.String,
		Email:     r.Email.String,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}

func toGroupRow(g schedule.Group) groupRow {
	return groupRow{
		ID:               g.ID,
		Name:             g.Name,
		TeacherID:        g.TeacherID,
		RoomID:           null.NewString(g.RoomID, g.RoomID != ""),
		Day:              int(g.Day),
		StartMinute:      g.StartTime.Minutes(),
		DurationMinutes:  g.DurationMinutes,
		Fee:              g.Fee,
		IsActive:         g.IsActive,
		ConflictOverride: g.ConflictOverride,
		CreatedAt:        g.CreatedAt.UTC(),
		UpdatedAt:        g.UpdatedAt.UTC(),
	}
}

func (r groupRow) group() schedule.Group {
	return schedule.Group{
		ID:               r.ID,
		Name:             r.Name,
		TeacherID:        r.TeacherID,
		RoomID:           r.RoomID.String,
		Day:              core.Weekday(r.Day),
		StartTime:        core.ClockTime(r.StartMinute),
		DurationMinutes:  r.DurationMinutes,
		Fee:              r.Fee,
		IsActive:         r.IsActive,
		ConflictOverride: r.ConflictOverride,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func groups(rows []groupRow) []schedule.Group {
	out := make([]schedule.Group, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.group())
	}
	return out
}

type scheduleRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *sqlx.DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateRoom(ctx context.Context, room schedule.Room) (schedule.Room, error) {
	row := roomRow{ID: room.ID, Name: room.Name, Capacity: room.Capacity, IsActive: room.IsActive, CreatedAt: room.CreatedAt.UTC()}
	_, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO room (id, name, capacity, is_active, created_at)
		VALUES (:id, :name, :capacity, :is_active, :created_at)`, row)
	if err != nil {
		return schedule.Room{}, errors.Wrap(err, "inserting room")
	}
	return row.room(), nil
}

func (repo *scheduleRepository) GetRoom(ctx context.Context, id string) (schedule.Room, error) {
	var row roomRow
	err := getExec(ctx, repo.db).GetContext(ctx, &row, `SELECT * FROM room WHERE id = $1`, id)
	if err != nil {
		return schedule.Room{}, notFound(err, schedule.ErrRoomNotFound)
	}
	return row.room(), nil
}

func (repo *scheduleRepository) ListRooms(ctx context.Context, activeOnly bool) ([]schedule.Room, error) {
	var rows []roomRow
	err := getExec(ctx, repo.db).SelectContext(ctx, &rows, `
		SELECT * FROM room WHERE is_active OR NOT $1 ORDER BY name`, activeOnly)
	if err != nil {
		return nil, errors.Wrap(err, "selecting rooms")
	}
	rooms := make([]schedule.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, r.room())
	}
	return rooms, nil
}

func (repo *scheduleRepository) CreateTeacher(ctx context.Context, teacher schedule.Teacher) (schedule.Teacher, error) {
	row := teacherRow{
		ID:        teacher.ID,
		Name:      teacher.Name,
		Phone:     null.NewString(teacher.Phone, teacher.Phone != ""),
		Email:     null.NewString(teacher.Email, teacher.Email != ""),
		IsActive:  teacher.IsActive,
		CreatedAt: teacher.CreatedAt.UTC(),
	}
	_, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO teacher (id, name, phone, email, is_active, created_at)
		VALUES (:id, :name, :phone, :email, :is_active, :created_at)`, row)
	if err != nil {
		return schedule.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return row.teacher(), nil
}

func (repo *scheduleRepository) GetTeacher(ctx context.Context, id string) (schedule.Teacher, error) {
	var row teacherRow
	err := getExec(ctx, repo.db).GetContext(ctx, &row, `SELECT * FROM teacher WHERE id = $1`, id)
	if err != nil {
		return schedule.Teacher{}, notFound(err, schedule.ErrTeacherNotFound)
	}
	return row.teacher(), nil
}

// overlapError turns an exclusion violation into a ConflictError naming the booking in the way.
func (repo *scheduleRepository) overlapError(ctx context.Context, grp schedule.Group, err error) error {
	if code, _ := pqError(err); code != pqExclusionViolation {
		return err
	}
	conflict := schedule.Conflict{
		RoomID:  grp.RoomID,
		Day:     grp.Day,
		Message: "room is already booked at this time",
	}
	if bookings, lerr := repo.RoomBookings(ctx, grp.RoomID); lerr == nil {
		found := schedule.FindConflicts(bookings, grp.RoomID, grp.Day, grp.StartTime, grp.DurationMinutes, bufferMinutes, grp.ID)
		if len(found) > 0 {
			conflict = found[0]
		}
	}
	return &schedule.ConflictError{Conflict: conflict}
}

func (repo *scheduleRepository) CreateGroup(ctx context.Context, grp schedule.Group) (schedule.Group, error) {
	row := toGroupRow(grp)
	_, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO class_group (
			id, name, teacher_id, room_id, day, start_minute, duration_minutes,
			fee, is_active, conflict_override, created_at, updated_at
		) VALUES (
			:id, :name, :teacher_id, :room_id, :day, :start_minute, :duration_minutes,
			:fee, :is_active, :conflict_override, :created_at, :updated_at
		)`, row)
	if err != nil {
		return schedule.Group{}, errors.Wrap(repo.overlapError(ctx, grp, err), "inserting group")
	}
	return row.group(), nil
}

func (repo *scheduleRepository) UpdateGroup(ctx context.Context, grp schedule.Group) (schedule.Group, error) {
	row := toGroupRow(grp)
	res, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE class_group SET
			name = :name, teacher_id = :teacher_id, room_id = :room_id, day = :day,
			start_minute = :start_minute, duration_minutes = :duration_minutes, fee = :fee,
			is_active = :is_active, conflict_override = :conflict_override, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return schedule.Group{}, errors.Wrap(repo.overlapError(ctx, grp, err), "updating group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.Group{}, schedule.ErrGroupNotFound
	}
	return row.group(), nil
}

func (repo *scheduleRepository) GetGroup(ctx context.Context, id string) (schedule.Group, error) {
	var row groupRow
	err := getExec(ctx, repo.db).GetContext(ctx, &row, `SELECT * FROM class_group WHERE id = $1`, id)
	if err != nil {
		return schedule.Group{}, notFound(err, schedule.ErrGroupNotFound)
	}
	return row.group(), nil
}

func (repo *scheduleRepository) ListGroups(ctx context.Context, activeOnly bool) ([]schedule.Group, error) {
	var rows []groupRow
	err := getExec(ctx, repo.db).SelectContext(ctx, &rows, `
		SELECT * FROM class_group WHERE is_active OR NOT $1 ORDER BY day, start_minute, name`, activeOnly)
	if err != nil {
		return nil, errors.Wrap(err, "selecting groups")
	}
	return groups(rows), nil
}

func (repo *scheduleRepository) RoomBookings(ctx context.Context, roomID string) ([]schedule.Group, error) {
	var rows []groupRow
	err := getExec(ctx, repo.db).SelectContext(ctx, &rows, `
		SELECT * FROM class_group WHERE room_id = $1 AND is_active ORDER BY day, start_minute`, roomID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting room bookings")
	}
	return groups(rows), nil
}
