package accounts_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-accounts"
)

func errorApp(err error) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: accounts.ErrorHandler(nil)})
	app.Get("/", func(c *fiber.Ctx) error { return err })
	return app
}

func decodeEnvelope(t *testing.T, app *fiber.App) (int, accounts.Response) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body accounts.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorHandlerRichError(t *testing.T) {
	status, body := decodeEnvelope(t, errorApp(accounts.ErrEmailTaken))

	assert.Equal(t, fiber.StatusConflict, status)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, accounts.ErrEmailTaken.TextCode, body.Error.Code)
	assert.Equal(t, fiber.StatusConflict, body.Error.StatusCode)
}

func TestErrorHandlerFiberError(t *testing.T) {
	status, body := decodeEnvelope(t, errorApp(fiber.NewError(fiber.StatusNotFound, "Route not found")))

	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Route not found", body.Error.Message)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestErrorHandlerPlainError(t *testing.T) {
	status, body := decodeEnvelope(t, errorApp(errors.New("disk on fire")))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "An unexpected server error occurred", body.Error.Message)
	assert.NotContains(t, body.Error.Message, "disk")
}

func TestErrorHandlerBannedMarker(t *testing.T) {
	status, body := decodeEnvelope(t, errorApp(accounts.NewAccountBannedError("Account has been banned", "spam")))

	assert.Equal(t, fiber.StatusForbidden, status)
	assert.True(t, body.Banned)
	require.NotNil(t, body.Error)
	assert.Equal(t, accounts.TextCodeAccountBanned, body.Error.Code)
}

func TestErrorHandlerRateLimited(t *testing.T) {
	status, body := decodeEnvelope(t, errorApp(accounts.ErrTooManyRequests))

	assert.Equal(t, fiber.StatusTooManyRequests, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, accounts.TextCodeRateLimited, body.Error.Code)
}
