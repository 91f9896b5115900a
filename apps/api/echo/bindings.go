package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

const dateLayout = "2006-01-02"

func queryError(field, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
}

// dateQuery parses the YYYY-MM-DD query param in loc. It returns the zero time when the param is absent.
func dateQuery(ctx echo.Context, name string, loc *time.Location) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	date, err := time.ParseInLocation(dateLayout, val, loc)
	if err != nil {
		return time.Time{}, queryError(name, "must be a date formatted as YYYY-MM-DD")
	}
	return date, nil
}

// monthQuery reads the year & month query params, defaulting to the current month.
func monthQuery(ctx echo.Context, loc *time.Location) (year, month int, err error) {
	now := attendance.NowFunc().In(loc)
	year, month = now.Year(), int(now.Month())

	if val := ctx.QueryParam("year"); val != "" {
		if year, err = strconv.Atoi(val); err != nil {
			return 0, 0, queryError("year", "must be a number")
		}
	}
	if val := ctx.QueryParam("month"); val != "" {
		if month, err = strconv.Atoi(val); err != nil {
			return 0, 0, queryError("month", "must be a number")
		}
	}
	return year, month, nil
}
