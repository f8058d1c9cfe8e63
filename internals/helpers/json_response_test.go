package helper

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHandler(t *testing.T, handler fiber.Handler) (int, map[string]any) {
	t.Helper()

	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestJsonError_Shape(t *testing.T) {
	status, body := runHandler(t, func(c *fiber.Ctx) error {
		return JsonError(c, fiber.StatusNotFound, "Test tidak ditemukan")
	})

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["error_code"])
	assert.Equal(t, "Test tidak ditemukan", body["message"])
}

func TestFromFiberError(t *testing.T) {
	status, body := runHandler(t, func(c *fiber.Ctx) error {
		return FromFiberError(c, fiber.NewError(fiber.StatusBadRequest, "ada yang salah"))
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", body["error_code"])

	// error biasa → 500
	status, body = runHandler(t, func(c *fiber.Ctx) error {
		return FromFiberError(c, errors.New("kaboom"))
	})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", body["error_code"])
}

func TestJsonOK_Shape(t *testing.T) {
	status, body := runHandler(t, func(c *fiber.Ctx) error {
		return JsonOK(c, "", fiber.Map{"x": 1})
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["message"], "message kosong harus di-default-kan")
}
