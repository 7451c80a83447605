package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyReq struct {
	BizKey string `validate:"required,biz_key"`
	Code   string `validate:"required,len=6"`
}

func TestValidator_BizKey(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&verifyReq{BizKey: "LOGIN", Code: "123456"}))

	err := v.Validate(&verifyReq{BizKey: "bad key:x", Code: "12"})
	require.Error(t, err)
	body := ErrorResponse(err)
	assert.Equal(t, "validation_failed", body.Error)
	assert.Equal(t, []string{"biz_key"}, body.Fields["bizkey"])
	assert.Equal(t, []string{"len"}, body.Fields["code"])
}

func TestErrorResponse_PlainError(t *testing.T) {
	body := ErrorResponse(errors.New("boom"))
	assert.Equal(t, "boom", body.Error)
	assert.Empty(t, body.Fields)
}
