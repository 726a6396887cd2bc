package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes data inside the envelope with statusCode as both the
// HTTP and the envelope status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return SuccessResponse(c, &ListDataResponse{Rows: rows, Total: total})
}

// BadRequestResponse carries validation details, usually []ValidationError.
func BadRequestResponse(c echo.Context, details interface{}) error {
	return DataResponse(c, http.StatusBadRequest, details)
}

// ReadinessResponse answers 200 when every check passed and 503 otherwise.
func ReadinessResponse(c echo.Context, checks []CheckResult) error {
	status := http.StatusOK
	for _, r := range checks {
		if !r.OK {
			status = http.StatusServiceUnavailable
			break
		}
	}
	return DataResponse(c, status, checks)
}

// AppErrorResponse writes err with its own status when it is an *AppError.
// Anything else becomes an opaque 500 so internals never leak.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return DataResponse(c, http.StatusInternalServerError, []*AppError{InternalError("Something went wrong")})
}
