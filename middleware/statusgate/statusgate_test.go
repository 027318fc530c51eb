package statusgate_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-accounts/middleware/statusgate"
)

type verifierMock struct{ mock.Mock }

func (m *verifierMock) Subject(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type storeMock struct{ mock.Mock }

func (m *storeMock) AccountStatus(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

type captured struct {
	err error
}

func newApp(t *testing.T, v *verifierMock, s *storeMock) (*fiber.App, *captured) {
	t.Helper()
	got := &captured{}
	app := fiber.New()
	app.Use(statusgate.New(statusgate.Config{
		Verifier: v,
		Store:    s,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			got.err = err
			var rich *goerrors.Error
			require.True(t, errors.As(err, &rich))
			return c.Status(rich.Code).JSON(fiber.Map{"banned": statusgate.IsBanned(err)})
		},
	}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app, got
}

func request(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	return res.StatusCode
}

func TestGatePassesWithoutToken(t *testing.T) {
	v, s := &verifierMock{}, &storeMock{}
	app, got := newApp(t, v, s)

	assert.Equal(t, fiber.StatusOK, request(t, app, ""))
	assert.NoError(t, got.err)
	v.AssertNotCalled(t, "Subject", mock.Anything)
	s.AssertNotCalled(t, "AccountStatus", mock.Anything, mock.Anything)
}

func TestGatePassesWhenNoKeyspaceAccepts(t *testing.T) {
	v, s := &verifierMock{}, &storeMock{}
	v.On("Subject", "bad").Return("", errors.New("rejected"))
	app, _ := newApp(t, v, s)

	assert.Equal(t, fiber.StatusOK, request(t, app, "bad"))
	s.AssertNotCalled(t, "AccountStatus", mock.Anything, mock.Anything)
}

func TestGateOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		status     string
		storeErr   error
		wantCode   int
		wantBanned bool
	}{
		{name: "active", status: "active", wantCode: fiber.StatusOK},
		{name: "banned", status: "banned", wantCode: fiber.StatusForbidden, wantBanned: true},
		{name: "inactive", status: "inactive", wantCode: fiber.StatusForbidden},
		{name: "missing account", storeErr: statusgate.ErrAccountNotFound, wantCode: fiber.StatusNotFound},
		{name: "store failure", storeErr: errors.New("connection reset"), wantCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, s := &verifierMock{}, &storeMock{}
			v.On("Subject", "tok").Return("u1", nil)
			s.On("AccountStatus", mock.Anything, "u1").Return(tc.status, tc.storeErr)

			app, got := newApp(t, v, s)
			assert.Equal(t, tc.wantCode, request(t, app, "tok"))
			assert.Equal(t, tc.wantBanned, statusgate.IsBanned(got.err))
			s.AssertExpectations(t)
		})
	}
}

func TestGateDefaultErrorHandlerReturnsError(t *testing.T) {
	v, s := &verifierMock{}, &storeMock{}
	v.On("Subject", "tok").Return("u1", nil)
	s.On("AccountStatus", mock.Anything, "u1").Return("banned", nil)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if statusgate.IsBanned(err) {
				return c.Status(fiber.StatusForbidden).SendString("banned")
			}
			return c.SendStatus(fiber.StatusTeapot)
		},
	})
	app.Use(statusgate.New(statusgate.Config{Verifier: v, Store: s}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	assert.Equal(t, fiber.StatusForbidden, request(t, app, "tok"))
}

func TestNewRequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { statusgate.New(statusgate.Config{}) })
}
