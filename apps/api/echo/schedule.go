package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
)

type (
	scheduleApi struct {
		svc      *schedule.Service
		validate *validator.Validate
		loc      *time.Location
	}

	// SlotQuery describes a weekly slot in query params.
	SlotQuery struct {
		Day         string `query:"day" json:"day" validate:"required,weekday"`
		Start       string `query:"start" json:"start" validate:"required,hhmm"`
		Duration    int    `query:"duration" json:"duration" validate:"required,min=1,max=720"`
		MinCapacity int    `query:"min_capacity" json:"min_capacity" validate:"min=0"`
		ExcludeID   string `query:"exclude_id" json:"exclude_id"`
	}
)

func registerScheduleAPI(g *echo.Group, deps ServerDeps) {
	api := scheduleApi{svc: deps.Schedule, validate: deps.Validate, loc: deps.Location}

	rg := g.Group("/rooms")
	rg.GET("", api.listRooms, roleMiddleware(RoleSupervisor, RoleAccountant))
	rg.POST("", api.createRoom, roleMiddleware())
	rg.GET("/availability", api.availability, roleMiddleware(RoleSupervisor))
	rg.GET("/:id/conflicts", api.conflicts, roleMiddleware(RoleSupervisor))
	rg.GET("/:id/schedule", api.weeklySchedule, roleMiddleware(RoleSupervisor, RoleAccountant))
	rg.GET("/:id/utilization", api.utilization, roleMiddleware(RoleAccountant))

	g.POST("/teachers", api.createTeacher, roleMiddleware())

	gg := g.Group("/groups")
	gg.GET("", api.listGroups, roleMiddleware(RoleSupervisor, RoleAccountant))
	gg.POST("", api.createGroup, roleMiddleware())
	gg.GET("/:id", api.retrieveGroup, roleMiddleware(RoleSupervisor, RoleAccountant))
	gg.PUT("/:id", api.updateGroup, roleMiddleware())
	gg.DELETE("/:id", api.deactivateGroup, roleMiddleware())
}

// Handlers

func (api *scheduleApi) listRooms(ctx echo.Context) error {
	rooms, err := api.svc.ListRooms(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *scheduleApi) createRoom(ctx echo.Context) error {
	var data schedule.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	room, err := api.svc.CreateRoom(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *scheduleApi) createTeacher(ctx echo.Context) error {
	var data schedule.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	teacher, err := api.svc.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, teacher)
}

func (api *scheduleApi) bindSlot(ctx echo.Context) (SlotQuery, core.Weekday, core.ClockTime, error) {
	var q SlotQuery
	if err := ctx.Bind(&q); err != nil {
		return q, 0, 0, errors.Wrap(err, "binding to SlotQuery")
	}
	if err := api.validate.Struct(q); err != nil {
		return q, 0, 0, err
	}
	// both already validated
	day, _ := core.ParseWeekday(q.Day)
	start, _ := core.ParseClockTime(q.Start)
	return q, day, start, nil
}

func (api *scheduleApi) availability(ctx echo.Context) error {
	q, day, start, err := api.bindSlot(ctx)
	if err != nil {
		return err
	}
	rooms, err := api.svc.FindAvailableRooms(ctx.Request().Context(), day, start, q.Duration, q.MinCapacity)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *scheduleApi) conflicts(ctx echo.Context) error {
	q, day, start, err := api.bindSlot(ctx)
	if err != nil {
		return err
	}
	conflict, err := api.svc.CheckConflict(ctx.Request().Context(), ctx.Param("id"), day, start, q.Duration, q.ExcludeID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"has_conflict": conflict != nil, "conflict": conflict})
}

func (api *scheduleApi) weeklySchedule(ctx echo.Context) error {
	weekStart, err := dateQuery(ctx, "week_start", api.loc)
	if err != nil {
		return err
	}
	ws, err := api.svc.GetWeeklySchedule(ctx.Request().Context(), ctx.Param("id"), weekStart)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *scheduleApi) utilization(ctx echo.Context) error {
	year, month, err := monthQuery(ctx, api.loc)
	if err != nil {
		return err
	}
	util, err := api.svc.CalculateUtilization(ctx.Request().Context(), ctx.Param("id"), month, year)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, util)
}

func (api *scheduleApi) listGroups(ctx echo.Context) error {
	groups, err := api.svc.ListGroups(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *scheduleApi) retrieveGroup(ctx echo.Context) error {
	grp, err := api.svc.GetGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *scheduleApi) createGroup(ctx echo.Context) error {
	var data schedule.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	grp, err := api.svc.CreateGroup(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *scheduleApi) updateGroup(ctx echo.Context) error {
	var data schedule.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	grp, err := api.svc.UpdateGroup(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *scheduleApi) deactivateGroup(ctx echo.Context) error {
	grp, err := api.svc.DeactivateGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}
