package accounts

import (
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	Data      any            `json:"data,omitempty"`
	Error     *ErrorBody     `json:"error,omitempty"`
	Banned    bool           `json:"banned,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"requestId,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type ErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
}

// RequestIDLocal is the fiber local holding the request id.
const RequestIDLocal = "requestid"

// SendSuccess writes a successful envelope with the given status.
func SendSuccess(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
		RequestID: requestID(c),
	})
}

// SendError writes err as an error envelope. Errors that are not
// *goerrors.Error are reported as internal errors.
func SendError(c *fiber.Ctx, err error) error {
	rich := AsRichError(err)
	body := Response{
		Success: false,
		Error: &ErrorBody{
			Message:    rich.Message,
			Code:       textCode(rich),
			StatusCode: rich.Code,
		},
		Timestamp: time.Now().UTC(),
		RequestID: requestID(c),
	}

	if fields, ok := rich.Metadata["fields"]; ok {
		body.Error.Details = fields
	} else if len(rich.Metadata) > 0 {
		body.Error.Details = rich.Metadata
	}
	if banned, _ := rich.Metadata["banned"].(bool); banned {
		body.Banned = true
	}

	return c.Status(rich.Code).JSON(body)
}

// AsRichError converts err into a *goerrors.Error with an HTTP status.
func AsRichError(err error) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code == 0 {
			rich = goerrors.Wrap(rich, rich.Category, rich.Message).WithCode(codeForCategory(rich.Category))
		}
		return rich
	}

	var fe *fiber.Error
	if goerrors.As(err, &fe) {
		return goerrors.New(fe.Message, categoryForCode(fe.Code)).WithCode(fe.Code)
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
		WithCode(goerrors.CodeInternal)
}

// ErrorHandler is the fiber.ErrorHandler of the API.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = ResolveLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		rich := AsRichError(err)

		args := []any{
			"error", err.Error(),
			"category", rich.Category,
			"status", rich.Code,
			"path", c.OriginalURL(),
			"request_id", requestID(c),
		}
		if len(rich.Metadata) > 0 {
			args = append(args, "details", print.MaybePrettyJSON(rich.Metadata))
		}

		if rich.Code >= fiber.StatusInternalServerError {
			logger.Error("request failed", args...)
		} else {
			logger.Debug("request rejected", args...)
		}

		return SendError(c, rich)
	}
}

func textCode(rich *goerrors.Error) string {
	if rich.TextCode != "" {
		return rich.TextCode
	}
	switch rich.Code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	return "INTERNAL_ERROR"
}

func codeForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return goerrors.CodeBadRequest
	case goerrors.CategoryAuth:
		return goerrors.CodeUnauthorized
	case goerrors.CategoryAuthz:
		return goerrors.CodeForbidden
	case goerrors.CategoryNotFound:
		return goerrors.CodeNotFound
	case goerrors.CategoryConflict:
		return goerrors.CodeConflict
	case goerrors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	}
	return goerrors.CodeInternal
}

func categoryForCode(code int) goerrors.Category {
	switch code {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return goerrors.CategoryBadInput
	case fiber.StatusUnauthorized:
		return goerrors.CategoryAuth
	case fiber.StatusForbidden:
		return goerrors.CategoryAuthz
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return goerrors.CategoryNotFound
	case fiber.StatusConflict:
		return goerrors.CategoryConflict
	case fiber.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	}
	return goerrors.CategoryInternal
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(RequestIDLocal).(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
