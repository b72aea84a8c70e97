package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Decode tries to convert an error to Errno
// 支持被 fmt.Errorf("%w") 包装过的 Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Blind box errors (20300+)
var (
	ErrBoxItemNotFound     = Errno{Code: 20301, Message: "Box item not found"}
	ErrPermissionDenied    = Errno{Code: 20302, Message: "Permission denied"}
	ErrAlreadyOpening      = Errno{Code: 20303, Message: "Box item is already being opened"}
	ErrCollectibleNotFound = Errno{Code: 20304, Message: "Collectible not found"}
	ErrIllegalState        = Errno{Code: 20305, Message: "Illegal box item state transition"}
	ErrOrderAssigned       = Errno{Code: 20306, Message: "Order already assigned to another box item"}
)

// Chain operation errors (20400+)
// 这一组错误只会记录在 ledger 中，不会透传给开盒请求方
var (
	ErrOperationInProgress = Errno{Code: 20401, Message: "Operation in progress"}
	ErrExternalCallFailed  = Errno{Code: 20402, Message: "External chain call failed"}
	ErrExternalCallTimeout = Errno{Code: 20403, Message: "External chain call timeout"}
	ErrUnknownChain        = Errno{Code: 20404, Message: "Unknown chain type"}
)
