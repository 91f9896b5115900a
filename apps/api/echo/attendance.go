package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceApi struct {
	engine   *attendance.Engine
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, deps ServerDeps) {
	api := attendanceApi{engine: deps.Engine, validate: deps.Validate}

	ag := g.Group("", roleMiddleware(RoleSupervisor))
	ag.POST("/scan", api.scan)
	ag.POST("/sessions/checkin", api.checkIn)
}

// scan always answers 200 with the decision; only malformed requests and failures are errors.
func (api *attendanceApi) scan(ctx echo.Context) error {
	var data attendance.NewScan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScan")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	res, err := api.engine.Scan(ctx.Request().Context(), data.Code, actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	var data attendance.NewCheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCheckIn")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	sess, err := api.engine.TeacherCheckIn(ctx.Request().Context(), data.GroupID, actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}
