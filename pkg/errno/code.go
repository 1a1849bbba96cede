package errno

import (
	"errors"
	"fmt"
)

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
	// Parent 上级错误码，子错误码同时匹配上级，例如 20003 属于 ErrInvalidInput
	Parent *Errno
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// Is 按错误码匹配，NewBizError 派生的错误与原始错误视为相同；子错误码也匹配上级错误码
func (e *Errno) Is(target error) bool {
	var t *Errno
	if !errors.As(target, &t) {
		return false
	}
	for cur := e; cur != nil; cur = cur.Parent {
		if cur.Code == t.Code {
			return true
		}
	}
	return false
}

// NewBizError 基于已有错误码附加上下文信息
func NewBizError(base *Errno, detail string) *Errno {
	if base == nil {
		base = ErrUnknown
	}
	if detail == "" {
		return &Errno{Code: base.Code, Message: base.Message, Parent: base.Parent}
	}
	return &Errno{Code: base.Code, Message: fmt.Sprintf("%s: %s", base.Message, detail), Parent: base.Parent}
}

// CodeOf 返回错误对应的错误码，非 Errno 错误统一视为内部错误
func CodeOf(err error) int {
	if err == nil {
		return OK.Code
	}
	var e *Errno
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternalServer.Code
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrNotFound     = &Errno{Code: 404, Message: "Not found"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 任务契约错误码；20002-20004、20013、20014 是 InvalidInput 的细分
	ErrInvalidInput      = &Errno{Code: 20001, Message: "Invalid input"}
	ErrMediaRefRequired  = &Errno{Code: 20002, Message: "Media reference is required", Parent: ErrInvalidInput}
	ErrUnsupportedMedia  = &Errno{Code: 20003, Message: "Unsupported media reference", Parent: ErrInvalidInput}
	ErrTaskIDRequired    = &Errno{Code: 20004, Message: "Task id is required", Parent: ErrInvalidInput}
	ErrTaskNotFound      = &Errno{Code: 20008, Message: "Task not found"}
	ErrInvalidTaskStatus = &Errno{Code: 20009, Message: "Invalid task status"}
	ErrResultNotReady    = &Errno{Code: 20010, Message: "Task result not ready"}
	ErrResultExpired     = &Errno{Code: 20011, Message: "Task result not found or expired"}
	ErrQueueUnavailable  = &Errno{Code: 20012, Message: "Task queue unavailable"}
	ErrInvalidLanguage   = &Errno{Code: 20013, Message: "Invalid language code", Parent: ErrInvalidInput}
	ErrInvalidProfile    = &Errno{Code: 20014, Message: "Unknown model profile", Parent: ErrInvalidInput}
)
