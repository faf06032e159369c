package http_server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danthegoodman1/icemor/gologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxRequestIDLen = 64

// CustomContext carries the request ID every handler logs and reports with
type CustomContext struct {
	echo.Context
	RequestID string
}

// CreateReqContext reuses a caller supplied X-Request-ID or mints one, echoes
// it back, and puts a logger tagged with it on the request context.
func CreateReqContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Request().Header.Get(echo.HeaderXRequestID)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, reqID)
		ctx := gologger.WithRequestID(c.Request().Context(), logger, reqID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(&CustomContext{Context: c, RequestID: reqID})
	}
}

func ccHandler(h func(*CustomContext) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h(c.(*CustomContext))
	}
}

func (c *CustomContext) BadRequest(err error) error {
	return c.String(http.StatusBadRequest, err.Error())
}

// InternalError logs err and hides it from the caller behind the request ID.
// Cancellations are only warned about since the caller went away or ran out of time.
func (c *CustomContext) InternalError(err error, msg string) error {
	logger := zerolog.Ctx(c.Request().Context())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Warn().CallerSkipFrame(1).Err(err).Msg(msg)
	} else {
		logger.Error().CallerSkipFrame(1).Err(err).Msg(msg)
	}
	return c.String(http.StatusInternalServerError, "internal error, request id: "+c.RequestID)
}
