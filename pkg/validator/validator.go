package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Message 将参数校验错误转换为可读的提示
func Message(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "请求参数错误"
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s 不能为空", field))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s 必须大于 %s", field, e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s 必须大于等于 %s", field, e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s 长度不能超过 %s", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s 校验失败 (%s)", field, e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
