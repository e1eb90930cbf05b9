// Every error leaves through fail, so clients always get the same envelope:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "invalid_transition",
//	  "message": "invalid status transition: pending -> resolved"
//	}
//
// Binding failures additionally list the offending JSON fields with the rule
// they broke:
//
//	{ "code": "validation_failed", "message": "invalid request body",
//	  "fields": { "status": "required" } }

package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/choukwa/choukwa-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching client reports with server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go.
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"complaint not found"`
	// JSON field -> failed rule, for body validation errors only.
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger; 4xx are the access log's business.
func fail(c *gin.Context, status int, code, msg string) {
	writeError(c, status, ErrorResponse{Code: code, Message: msg})
}

// Fail is fail for the router's fallback handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

var jsonFieldNames sync.Once

// useJSONFieldNames makes validator report fields by their JSON names so the
// "fields" map matches what clients sent.
func useJSONFieldNames() {
	jsonFieldNames.Do(func() {
		v, isValidator := binding.Validator.Engine().(*validator.Validate)
		if !isValidator {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes the body into dst. Malformed JSON answers 400 bad_request;
// binding rule violations answer 400 validation_failed with the field map.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		names = append(names, fe.Field())
	}
	sort.Strings(names)
	writeError(c, http.StatusBadRequest, ErrorResponse{
		Code:    ErrCodeValidation,
		Message: "invalid request body: " + strings.Join(names, ", "),
		Fields:  fields,
	})
	return false
}
