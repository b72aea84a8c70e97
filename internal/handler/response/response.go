package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response
// 业务码放在 body 里，HTTP 状态码按错误类别映射
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	c.JSON(httpStatus(code), Response{
		Code:    code,
		Message: msg,
		Data:    gin.H{},
	})
}

func httpStatus(code int) int {
	switch code {
	case errno.ErrBind.Code:
		return http.StatusBadRequest
	case errno.ErrTokenInvalid.Code:
		return http.StatusUnauthorized
	case errno.ErrPermissionDenied.Code:
		return http.StatusForbidden
	case errno.ErrBoxItemNotFound.Code, errno.ErrCollectibleNotFound.Code:
		return http.StatusNotFound
	case errno.ErrAlreadyOpening.Code, errno.ErrIllegalState.Code, errno.ErrOperationInProgress.Code,
		errno.ErrOrderAssigned.Code:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
