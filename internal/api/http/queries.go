package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report query parameter names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

type liveHistoryQuery struct {
	From string `query:"from" validate:"required"`
	To   string `query:"to" validate:"required"`
}

type temperatureQuery struct {
	Start     string `query:"start" validate:"required"`
	Stop      string `query:"stop" validate:"required"`
	Frequency string `query:"frequency" validate:"required,oneof=daily hourly 10-minutes"`
}

type fogCountQuery struct {
	Start     string `query:"start" validate:"required"`
	Stop      string `query:"stop" validate:"required"`
	Frequency string `query:"frequency" validate:"required,oneof=monthly yearly"`
}

type stationQuery struct {
	StationID string `query:"station_id" validate:"required,number"`
}

type archiveQuery struct {
	Date    string `query:"date" validate:"required"`
	ModelID string `query:"model_id" validate:"required"`
}

type archiveWaterLevelQuery struct {
	Start     string `query:"start" validate:"required"`
	Stop      string `query:"stop" validate:"required"`
	StationID string `query:"station_id" validate:"required,number"`
	Period    string `query:"period" validate:"omitempty,oneof=m y"`
}

type forecastsQuery struct {
	Datetime string `query:"datetime" validate:"required"`
	ModelID  string `query:"model_id" validate:"required"`
}

type modelQuery struct {
	ModelID string `query:"model_id" validate:"required"`
}

type stationReadingsQuery struct {
	Start string `query:"start" validate:"required"`
	Stop  string `query:"stop" validate:"required"`
}

// bindQuery parses and validates query parameters into dst.
func bindQuery(c *fiber.Ctx, dst any) error {
	if err := c.QueryParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, describe(verrs[0]))
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is a required parameter", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "number":
		return fmt.Sprintf("%s must be an integer", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

func parseParam(name, value, layout, human string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be in the format %s", name, human))
	}
	return t.UTC(), nil
}

func parseRange(start, stop, layout, human string) (time.Time, time.Time, error) {
	from, err := parseParam("start", start, layout, human)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseParam("stop", stop, layout, human)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// parseInstant accepts RFC3339 or Unix seconds.
func parseInstant(name, s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fiber.NewError(fiber.StatusBadRequest, name+" must be RFC3339 or unix seconds")
}
