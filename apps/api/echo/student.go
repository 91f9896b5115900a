package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/student"
)

type studentApi struct {
	svc      *student.Service
	ledger   *ledger.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, deps ServerDeps) {
	api := studentApi{svc: deps.Students, ledger: deps.Ledger, validate: deps.Validate}

	sg := g.Group("/students", roleMiddleware(RoleSupervisor, RoleAccountant))
	sg.POST("", api.create)

	// detail endpoints
	dg := sg.Group("/:code", studentByCodeMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.GET("/enrollments", api.enrollments)
	dg.POST("/deactivate", api.deactivate, roleMiddleware())
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	stu, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, stu)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextStudent(ctx))
}

func (api *studentApi) enrollments(ctx echo.Context) error {
	enrs, err := api.ledger.StudentEnrollments(ctx.Request().Context(), contextStudent(ctx).ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *studentApi) deactivate(ctx echo.Context) error {
	stu, err := api.svc.Deactivate(ctx.Request().Context(), contextStudent(ctx).ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stu)
}

const contextStudentKey = "student"

func studentByCodeMiddleware(svc *student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			stu, err := svc.GetByCode(ctx.Request().Context(), ctx.Param("code"))
			if err != nil {
				return err
			}
			ctx.Set(contextStudentKey, stu)
			return next(ctx)
		}
	}
}

func contextStudent(ctx echo.Context) student.Student {
	stu, _ := ctx.Get(contextStudentKey).(student.Student)
	return stu
}
