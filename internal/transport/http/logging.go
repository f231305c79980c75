package http

import (
	"encoding/json"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/classtrack/attendance-api/internal/domain"
)

// registerLogging emits one JSON line per request through the standard log
// package, so whatever writer main wires up (stderr, the Logstash mirror)
// sees the same stream.
func registerLogging(e *echo.Echo) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			userID := "anonymous"
			if user, ok := c.Get(contextUserKey).(*domain.User); ok && user != nil {
				userID = user.ID.String()
			}

			entry := struct {
				Time      string `json:"time"`
				UserUUID  string `json:"user_uuid"`
				Method    string `json:"method"`
				URI       string `json:"uri"`
				Status    int    `json:"status"`
				LatencyMS int64  `json:"latency_ms"`
				Error     string `json:"error,omitempty"`
			}{
				Time:      v.StartTime.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
				UserUUID:  userID,
				Method:    v.Method,
				URI:       v.URI,
				Status:    v.Status,
				LatencyMS: v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				entry.Error = v.Error.Error()
			}

			line, err := json.Marshal(entry)
			if err != nil {
				return nil
			}
			log.Println(string(line))
			return nil
		},
	}))
}
