package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"academy_billing_app/internal/billing"
)

// JSONErrorHandler renders the billing error taxonomy as stable JSON error
// responses. Domain errors carry their code so API clients can branch
// without parsing messages.
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	errCode := "INTERNAL_ERROR"
	message := "Something went wrong. Please try again later."

	var validationErr *billing.ValidationError
	var transitionErr *billing.InvalidTransitionError
	var notFoundErr *billing.NotFoundError
	var txErr *billing.TransactionError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &validationErr):
		code = http.StatusBadRequest
		errCode = validationErr.Code()
		message = validationErr.Error()
	case errors.As(err, &transitionErr):
		code = http.StatusBadRequest
		errCode = transitionErr.Code()
		message = transitionErr.Error()
	case errors.As(err, &notFoundErr):
		code = http.StatusNotFound
		errCode = notFoundErr.Code()
		message = notFoundErr.Error()
	case errors.As(err, &txErr):
		code = http.StatusInternalServerError
		errCode = txErr.Code()
		message = "The operation could not be completed. Please retry."
	case errors.As(err, &httpErr):
		code = httpErr.Code
		errCode = http.StatusText(code)
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if jsonErr := c.JSON(code, map[string]string{
		"error": message,
		"code":  errCode,
	}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
