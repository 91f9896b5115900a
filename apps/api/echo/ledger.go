package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/ledger"
)

type (
	ledgerApi struct {
		svc      *ledger.Service
		validate *validator.Validate
	}

	EligibilityQuery struct {
		StudentID string `query:"student_id" json:"student_id" validate:"required"`
		GroupID   string `query:"group_id" json:"group_id" validate:"required"`
	}

	EnrollmentCredit struct {
		ledger.Enrollment
		Credit ledger.CreditStatus `json:"credit"`
	}
)

func registerLedgerAPI(g *echo.Group, deps ServerDeps) {
	api := ledgerApi{svc: deps.Ledger, validate: deps.Validate}

	eg := g.Group("/enrollments", roleMiddleware(RoleSupervisor, RoleAccountant))
	eg.POST("", api.enroll)
	eg.GET("/:id", api.retrieve)
	eg.GET("/:id/credit", api.credit)
	eg.GET("/:id/audit", api.audit, roleMiddleware(RoleAccountant))

	g.GET("/eligibility", api.eligibility, roleMiddleware(RoleSupervisor, RoleAccountant))
	g.POST("/payments", api.recordPayment, roleMiddleware(RoleAccountant))
}

// Handlers

func (api *ledgerApi) enroll(ctx echo.Context) error {
	var data ledger.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	enr, err := api.svc.Enroll(ctx.Request().Context(), data, actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *ledgerApi) retrieve(ctx echo.Context) error {
	enr, err := api.svc.GetEnrollment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, EnrollmentCredit{Enrollment: enr, Credit: ledger.GetCreditStatus(enr)})
}

func (api *ledgerApi) credit(ctx echo.Context) error {
	enr, err := api.svc.GetEnrollment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ledger.GetCreditStatus(enr))
}

func (api *ledgerApi) audit(ctx echo.Context) error {
	enr, err := api.svc.GetEnrollment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	trail, err := api.svc.AuditTrail(ctx.Request().Context(), enr.StudentID, enr.GroupID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, trail)
}

func (api *ledgerApi) eligibility(ctx echo.Context) error {
	var q EligibilityQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to EligibilityQuery")
	}
	if err := api.validate.Struct(q); err != nil {
		return err
	}

	elig, err := api.svc.CheckEligibility(ctx.Request().Context(), q.StudentID, q.GroupID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, elig)
}

func (api *ledgerApi) recordPayment(ctx echo.Context) error {
	var data ledger.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	enr, err := api.svc.RecordPayment(ctx.Request().Context(), data, actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, EnrollmentCredit{Enrollment: enr, Credit: ledger.GetCreditStatus(enr)})
}
