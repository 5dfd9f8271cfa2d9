package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Response is the unified API response structure
type Response struct {
	Code    int         `json:"code"`    // Business status code, 0 means success
	Message string      `json:"message"` // Message
	Data    interface{} `json:"data"`    // Response data
}

// OK responds with a success payload
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// OKWithMessage responds with a success payload and a custom message
func OKWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Fail responds with an error. err may be an *AppError or a plain error;
// plain errors are wrapped as internal errors and never leak details.
func Fail(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = ErrInternalError("", err)
	}

	if appErr.Err != nil {
		logrus.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"code":   appErr.Code,
		}).WithError(appErr.Err).Error(appErr.Message)
	}

	c.JSON(appErr.HTTPStatus, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Data:    appErr.Data,
	})
}

// FailWithCode responds with an explicit HTTP status and business code
func FailWithCode(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}
