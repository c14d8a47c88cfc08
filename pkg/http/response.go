package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope with the real status code and the request
// id assigned by the server middleware.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:    statusCode,
		Message:   http.StatusText(statusCode),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		Data:      data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func ListResponse(c echo.Context, items interface{}, total int) error {
	return DataResponse(c, http.StatusOK, &ListData{Items: items, Total: total})
}

// ValidationResponse rejects a request that failed BindRequest.
func ValidationResponse(c echo.Context, errs []ValidationError) error {
	return DataResponse(c, http.StatusBadRequest, errs)
}

// AppErrorResponse writes err as a one-element error list. Errors that are
// not an AppError become a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("internal error").WithError(err)
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
