package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/schedule"
)

// bufferMinutes mirrors the gap enforced by the rooms exclusion constraint.
const bufferMinutes = 15

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateRoom(_ context.Context, room schedule.Room) (schedule.Room, error) {
	repo.db.room.Lock()
	defer repo.db.room.Unlock()

	repo.db.room.put(room.ID, room)
	return room, nil
}

func (repo *scheduleRepository) GetRoom(_ context.Context, id string) (schedule.Room, error) {
	repo.db.room.RLock()
	defer repo.db.room.RUnlock()

	if room, ok := repo.db.room.get(id); ok {
		return room, nil
	}
	return schedule.Room{}, schedule.ErrRoomNotFound
}

func (repo *scheduleRepository) ListRooms(_ context.Context, activeOnly bool) ([]schedule.Room, error) {
	repo.db.room.RLock()
	defer repo.db.room.RUnlock()

	rooms := make([]schedule.Room, 0)
	for _, r := range repo.db.room.all() {
		if !activeOnly || r.IsActive {
			rooms = append(rooms, r)
		}
	}
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms, nil
}

func (repo *scheduleRepository) CreateTeacher(_ context.Context, teacher schedule.Teacher) (schedule.Teacher, error) {
	repo.db.teacher.Lock()
	defer repo.db.teacher.Unlock()

	repo.db.teacher.put(teacher.ID, teacher)
	return teacher, nil
}

func (repo *scheduleRepository) GetTeacher(_ context.Context, id string) (schedule.Teacher, error) {
	repo.db.teacher.RLock()
	defer repo.db.teacher.RUnlock()

	if t, ok := repo.db.teacher.get(id); ok {
		return t, nil
	}
	return schedule.Teacher{}, schedule.ErrTeacherNotFound
}

// guard emulates the exclusion constraint over active, non-overridden bookings.
func (repo *scheduleRepository) guard(grp schedule.Group) error {
	if !grp.IsActive || grp.ConflictOverride || !grp.HasRoom() {
		return nil
	}
	others := make([]schedule.Group, 0)
	for _, g := range repo.db.group.all() {
		if !g.ConflictOverride {
			others = append(others, g)
		}
	}
	conflicts := schedule.FindConflicts(others, grp.RoomID, grp.Day, grp.StartTime, grp.DurationMinutes, bufferMinutes, grp.ID)
	if len(conflicts) > 0 {
		return &schedule.ConflictError{Conflict: conflicts[0]}
	}
	return nil
}

func (repo *scheduleRepository) CreateGroup(_ context.Context, grp schedule.Group) (schedule.Group, error) {
	repo.db.group.Lock()
	defer repo.db.group.Unlock()

	if err := repo.guard(grp); err != nil {
		return schedule.Group{}, err
	}
	repo.db.group.put(grp.ID, grp)
	return grp, nil
}

func (repo *scheduleRepository) UpdateGroup(_ context.Context, grp schedule.Group) (schedule.Group, error) {
	repo.db.group.Lock()
	defer repo.db.group.Unlock()

	if _, ok := repo.db.group.get(grp.ID); !ok {
		return schedule.Group{}, schedule.ErrGroupNotFound
	}
	if err := repo.guard(grp); err != nil {
		return schedule.Group{}, err
	}
	repo.db.group.put(grp.ID, grp)
	return grp, nil
}

func (repo *scheduleRepository) GetGroup(_ context.Context, id string) (schedule.Group, error) {
	repo.db.group.RLock()
	defer repo.db.group.RUnlock()

	if g, ok := repo.db.group.get(id); ok {
		return g, nil
	}
	return schedule.Group{}, schedule.ErrGroupNotFound
}

func (repo *scheduleRepository) ListGroups(_ context.Context, activeOnly bool) ([]schedule.Group, error) {
	repo.db.group.RLock()
	defer repo.db.group.RUnlock()

	groups := make([]schedule.Group, 0)
	for _, g := range repo.db.group.all() {
		if !activeOnly || g.IsActive {
			groups = append(groups, g)
		}
	}
	sortGroups(groups)
	return groups, nil
}

func (repo *scheduleRepository) RoomBookings(_ context.Context, roomID string) ([]schedule.Group, error) {
	repo.db.group.RLock()
	defer repo.db.group.RUnlock()

	groups := make([]schedule.Group, 0)
	for _, g := range repo.db.group.all() {
		if g.IsActive && g.RoomID == roomID {
			groups = append(groups, g)
		}
	}
	sortGroups(groups)
	return groups, nil
}

func sortGroups(groups []schedule.Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Day != groups[j].Day {
			return groups[i].Day < groups[j].Day
		}
		return groups[i].StartTime < groups[j].StartTime
	})
}
