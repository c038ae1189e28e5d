package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tokenscope/internal/bootstrap"
	"github.com/samcharles93/tokenscope/internal/session"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
		},
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

// writeSessionError maps the session error taxonomy onto HTTP statuses.
func writeSessionError(c *echo.Context, err error) error {
	var (
		initErr     *bootstrap.InitError
		loadErr     *session.LoadError
		tokenizeErr *session.TokenizeError
	)
	msg := session.Message(err)
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, session.ErrLocalSource):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, session.ErrNoTokenizer):
		return writeError(c, http.StatusConflict, "no_tokenizer_error", msg)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return writeError(c, http.StatusServiceUnavailable, "timeout_error", msg)
	case errors.As(err, &initErr):
		return writeError(c, http.StatusServiceUnavailable, "module_unavailable_error", msg)
	case errors.As(err, &loadErr) && loadErr.Kind == session.FetchFailed:
		return writeError(c, http.StatusBadGateway, "fetch_error", msg)
	case errors.As(err, &loadErr):
		return writeError(c, http.StatusUnprocessableEntity, "invalid_tokenizer_error", msg)
	case errors.As(err, &tokenizeErr):
		return writeError(c, http.StatusUnprocessableEntity, "tokenize_error", msg)
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", msg)
	}
}
