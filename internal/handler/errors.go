package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/middleware"
	"github.com/iliyamo/football-squares/internal/model"
)

// apiError is the JSON body of every failed request.
type apiError struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Cells   []model.Cell `json:"cells,omitempty"`
}

// errorStatus maps engine errors to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, grid.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, grid.ErrNotManager):
		return http.StatusForbidden, "not_manager"
	case errors.Is(err, grid.ErrPlayerBlocked):
		return http.StatusForbidden, "player_blocked"
	case errors.Is(err, grid.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, grid.ErrCellUnavailable):
		return http.StatusConflict, "cell_unavailable"
	case errors.Is(err, grid.ErrAlreadyLocked):
		return http.StatusConflict, "already_locked"
	case errors.Is(err, grid.ErrGameNotJoinable):
		return http.StatusConflict, "game_not_joinable"
	case errors.Is(err, grid.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, grid.ErrQuotaExceeded):
		return http.StatusUnprocessableEntity, "quota_exceeded"
	case errors.Is(err, grid.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError renders err.  Internal errors are logged and hidden from the
// client.
func writeError(c echo.Context, err error) error {
	status, code := errorStatus(err)
	body := apiError{Error: code, Message: err.Error()}
	var cu *grid.CellUnavailableError
	if errors.As(err, &cu) {
		body.Cells = cu.Cells
	}
	if status == http.StatusInternalServerError {
		middleware.Logger(c).Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err))
		body.Message = "internal error"
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, apiError{Error: "invalid_input", Message: msg})
}

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a validator that reports json field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	if err := cv.v.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be an email address"
	case "min", "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max", "lte":
		return fe.Field() + " must be at most " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

// bindValid binds the request body into dst and validates it.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid body")
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
