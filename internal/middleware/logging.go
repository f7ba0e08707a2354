package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/metrics"
)

// RequestLogger logs one line per request through zap and makes the logger
// available to handlers via Logger.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	access := echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.String("route", v.RoutePath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if id, ok := UserID(c); ok {
				fields = append(fields, zap.Uint64("user_id", id))
			}
			switch {
			case v.Error != nil || v.Status >= 500:
				logger.Error("request", append(fields, zap.Error(v.Error))...)
			case v.Status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
			return nil
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		logged := access(next)
		return func(c echo.Context) error {
			SetLogger(c, logger)
			return logged(c)
		}
	}
}

// Metrics records request latency by route template.
func Metrics(rec *metrics.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = 500
			}
			rec.RecordHTTPRequest(c.Request().Method, c.Path(), status, time.Since(start))
			return err
		}
	}
}
