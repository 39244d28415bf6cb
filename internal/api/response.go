package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes data in the response envelope. The HTTP status and
// the envelope status always agree.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes a 200 response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes a 400 response.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// AppErrorResponse writes err, mapped through FromError.
func AppErrorResponse(c echo.Context, err error) error {
	appErr := FromError(err)
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
