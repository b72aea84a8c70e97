package errno

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"nil", nil, OK.Code},
		{"value", ErrAlreadyOpening, ErrAlreadyOpening.Code},
		{"pointer", &ErrPermissionDenied, ErrPermissionDenied.Code},
		{"wrapped", fmt.Errorf("open box 7: %w", ErrBoxItemNotFound), ErrBoxItemNotFound.Code},
		{"plain", errors.New("boom"), InternalServerError.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := Decode(tt.err)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestErrnoIsComparable(t *testing.T) {
	err := fmt.Errorf("mint: %w", ErrExternalCallTimeout)
	assert.True(t, errors.Is(err, ErrExternalCallTimeout))
	assert.False(t, errors.Is(err, ErrExternalCallFailed))
}
