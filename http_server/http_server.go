package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/gologger"
	"github.com/danthegoodman1/icemor/scheduler"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

var logger = gologger.Component("http")

type HTTPServer struct {
	Echo      *echo.Echo
	Scheduler *scheduler.Scheduler
}

type CustomValidator struct {
	validator *validator.Validate
}

// NewHTTPServer builds the routes without binding a listener
func NewHTTPServer(sched *scheduler.Scheduler) *HTTPServer {
	s := &HTTPServer{
		Echo:      echo.New(),
		Scheduler: sched,
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.JSONSerializer = &utils.NoEscapeJSONSerializer{}

	s.Echo.Use(CreateReqContext)
	s.Echo.Use(LoggerMiddleware)
	s.Echo.Use(middleware.CORS())
	s.Echo.Validator = &CustomValidator{validator: newValidator()}

	// technical - no auth
	s.Echo.GET("/hc", s.HealthCheck)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	compactions := s.Echo.Group("/tables/:table/compactions")
	compactions.POST("", ccHandler(s.ScheduleHandler))
	compactions.GET("", ccHandler(s.ListPlansHandler))
	compactions.GET("/:instant", ccHandler(s.GetPlanHandler))
	compactions.DELETE("/:instant", ccHandler(s.AbortPlanHandler))
	compactions.POST("/:instant/complete", ccHandler(s.CompletePlanHandler))

	return s
}

func StartHTTPServer(sched *scheduler.Scheduler) *HTTPServer {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", utils.GetEnvOrDefault("HTTP_PORT", "8080")))
	if err != nil {
		logger.Error().Err(err).Msg("error creating tcp listener, exiting")
		os.Exit(1)
	}
	s := NewHTTPServer(sched)

	s.Echo.Listener = listener
	go func() {
		logger.Info().Msg("starting h2c server on " + listener.Addr().String())
		err := s.Echo.StartH2CServer("", &http2.Server{})
		// stop the broker
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("failed to start h2c server, exiting")
			os.Exit(1)
		}
	}()

	return s
}

// newValidator adds the path rules for table names and partition paths
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("tablename", func(fl validator.FieldLevel) bool {
		return fsutils.CheckTableName(fl.Field().String()) == nil
	})
	v.RegisterValidation("partitionpath", func(fl validator.FieldLevel) bool {
		return fsutils.CheckPartitionPath(fl.Field().String()) == nil
	})
	return v
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func ValidateRequest(c echo.Context, s interface{}) error {
	if err := c.Bind(s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(s); err != nil {
		return err
	}
	return nil
}

func (*HTTPServer) HealthCheck(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	return err
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			// default handler
			c.Error(err)
		}
		stop := time.Since(start)
		// Log otherwise
		logger := zerolog.Ctx(c.Request().Context())
		req := c.Request()
		res := c.Response()

		p := req.URL.Path
		if p == "" {
			p = "/"
		}

		cl := req.Header.Get(echo.HeaderContentLength)
		if cl == "" {
			cl = "0"
		}
		logger.Debug().Str("method", req.Method).Str("remote_ip", c.RealIP()).Str("req_uri", req.RequestURI).Str("handler_path", c.Path()).Str("path", p).Int("status", res.Status).Int64("latency_ns", int64(stop)).Str("protocol", req.Proto).Str("bytes_in", cl).Int64("bytes_out", res.Size).Msg("req recived")
		return nil
	}
}
