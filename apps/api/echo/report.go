package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/report"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reportApi struct {
	svc *report.Service
	loc *time.Location
}

func registerReportAPI(g *echo.Group, deps ServerDeps) {
	api := reportApi{svc: deps.Reports, loc: deps.Location}

	rg := g.Group("/reports", roleMiddleware(RoleAccountant))
	rg.GET("/daily", api.daily)
	rg.GET("/settlement", api.settlement)
	rg.GET("/debtors", api.debtors)
}

// Handlers

func (api *reportApi) daily(ctx echo.Context) error {
	date, err := dateQuery(ctx, "date", api.loc)
	if err != nil {
		return err
	}
	if date.IsZero() {
		date = attendance.NowFunc().In(api.loc)
	}
	summary, err := api.svc.DailySummary(ctx.Request().Context(), date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

// settlement answers JSON, or an excel workbook with format=xlsx.
func (api *reportApi) settlement(ctx echo.Context) error {
	year, month, err := monthQuery(ctx, api.loc)
	if err != nil {
		return err
	}
	st, err := api.svc.MonthlySettlement(ctx.Request().Context(), year, month)
	if err != nil {
		return err
	}

	switch ctx.QueryParam("format") {
	case "", "json":
		return ctx.JSON(http.StatusOK, st)
	case "xlsx":
		var buf bytes.Buffer
		if err = report.WriteSettlementXLSX(&buf, st); err != nil {
			return errors.Wrap(err, "exporting settlement")
		}
		ctx.Response().Header().Set(
			echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=settlement-%04d-%02d.xlsx", year, month),
		)
		return ctx.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
	default:
		return queryError("format", "must be one of json, xlsx")
	}
}

func (api *reportApi) debtors(ctx echo.Context) error {
	debtors, err := api.svc.Debtors(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, debtors)
}
