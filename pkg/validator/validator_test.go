package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name   string `validate:"required"`
	Owner  uint64 `validate:"gt=0"`
	Rarity string `validate:"oneof=N R SR SSR"`
}

func TestMessage(t *testing.T) {
	err := validator.New().Struct(sample{Rarity: "UR"})
	msg := Message(err)

	assert.Contains(t, msg, "Name 不能为空")
	assert.Contains(t, msg, "Owner 必须大于 0")
	assert.Contains(t, msg, "Rarity 必须是 [N R SR SSR] 之一")

	assert.Equal(t, "请求参数错误", Message(errors.New("EOF")))
}
