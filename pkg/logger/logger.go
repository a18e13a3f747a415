package logger

import (
	"io"
	"net/url"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Context keys read by GinLogger. The auth middleware sets UserIDKey.
const (
	RequestIDKey = "request_id"
	UserIDKey    = "user_id"
)

// quietPaths are logged at debug level: probes and long-lived streams.
var quietPaths = map[string]bool{
	"/api/health":               true,
	"/api/events/notifications": true,
}

// redactedParams never reach the log. The SSE endpoint takes its token in the query.
var redactedParams = []string{"token", "access_token"}

const loggerKey = "logger"

var log zerolog.Logger

// Init sets the global level. Debug writes a console format for humans,
// anything else writes JSON lines to stdout.
func Init(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = os.Stdout
	if lvl == zerolog.DebugLevel {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	SetOutput(w, lvl)
}

// SetOutput replaces the global logger's destination.
func SetOutput(w io.Writer, lvl zerolog.Level) {
	log = zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", "agencyhub").
		Caller().
		Logger()
}

func init() {
	Init("info")
}

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }
func Fatal() *zerolog.Event { return log.Fatal() }

func Infof(format string, v ...interface{})  { log.Info().Msgf(format, v...) }
func Warnf(format string, v ...interface{})  { log.Warn().Msgf(format, v...) }
func Errorf(format string, v ...interface{}) { log.Error().Msgf(format, v...) }

// Fatalf logs and exits the process.
func Fatalf(format string, v ...interface{}) { log.Fatal().Msgf(format, v...) }

func Get() zerolog.Logger {
	return log
}

// FromContext returns the request-scoped logger installed by GinLogger, or
// the global logger outside a request.
func FromContext(c *gin.Context) *zerolog.Logger {
	if c != nil {
		if l, ok := c.Value(loggerKey).(*zerolog.Logger); ok {
			return l
		}
	}
	return &log
}

// GinLogger returns a Gin middleware that logs HTTP requests using zerolog.
// It assigns a request id, echoed back in X-Request-ID.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.RawQuery)

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		reqLog := log.With().Str("request_id", requestID).Logger()
		c.Set(loggerKey, &reqLog)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		case quietPaths[path]:
			event = log.Debug()
		default:
			event = log.Info()
		}

		event.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Str("ip", c.ClientIP()).
			Dur("latency", latency).
			Int("size", c.Writer.Size()).
			Str("request_id", requestID)
		if uid, ok := c.Get(UserIDKey); ok {
			event = event.Interface("user_id", uid)
		}
		event.Msg("request")
	}
}

func redactQuery(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	changed := false
	for _, key := range redactedParams {
		if values.Has(key) {
			values.Set(key, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}

// GinRecovery returns a Gin recovery middleware that logs panics using zerolog.
func GinRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		FromContext(c).Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("ip", c.ClientIP()).
			Msg("panic recovered")
		c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
	})
}
