package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("rahasia-banget")
	require.NoError(t, err)
	require.NotEqual(t, "rahasia-banget", hash)

	assert.NoError(t, CheckPasswordHash(hash, "rahasia-banget"))
	assert.Error(t, CheckPasswordHash(hash, "salah"))
}

func TestValidateRegisterInput(t *testing.T) {
	assert.NoError(t, ValidateRegisterInput("a@b.com", "12345678"))
	assert.Error(t, ValidateRegisterInput("", "12345678"))
	assert.Error(t, ValidateRegisterInput("a@b.com", "1234"))
}

func TestValidateLoginInput(t *testing.T) {
	assert.NoError(t, ValidateLoginInput("a@b.com", "x"))
	assert.Error(t, ValidateLoginInput("", "x"))
	assert.Error(t, ValidateLoginInput("a@b.com", ""))
}
