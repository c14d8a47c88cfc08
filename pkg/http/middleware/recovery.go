package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "BoostLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 envelope and logs the stack with
// the request id.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					l.Error("panic in handler",
						applogger.Error(perr),
						applogger.String("path", c.Path()),
						applogger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
						applogger.String("stack", string(debug.Stack())),
					)
					err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
						"status":     http.StatusInternalServerError,
						"message":    http.StatusText(http.StatusInternalServerError),
						"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
					})
				}
			}()
			return next(c)
		}
	}
}
