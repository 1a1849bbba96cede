package restapi

import (
	"errors"
	"net/http"

	"lingo-service/pkg/errno"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: errno.OK.Code, Message: errno.OK.Message, Data: data})
}

// Accepted 用于异步提交
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Code: errno.OK.Code, Message: errno.OK.Message, Data: data})
}

// Failed 按错误码映射 HTTP 状态
func Failed(c *gin.Context, err error) {
	var e *errno.Errno
	if !errors.As(err, &e) {
		e = errno.ErrInternalServer
	}
	c.JSON(httpStatus(e), Response{Code: e.Code, Message: e.Message})
}

func httpStatus(e *errno.Errno) int {
	switch {
	case errors.Is(e, errno.ErrTaskNotFound), errors.Is(e, errno.ErrResultExpired), errors.Is(e, errno.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(e, errno.ErrResultNotReady):
		return http.StatusConflict
	case errors.Is(e, errno.ErrQueueUnavailable):
		return http.StatusServiceUnavailable
	case e.Code == 400 || (e.Code >= 20001 && e.Code < 20100):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
