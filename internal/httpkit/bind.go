package httpkit

// Request binding and validation.
//
// Provides JSON body binding with struct tag validation
// using go-playground/validator/v10.

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return fld.Name
	})
}

// JSON decodes request body into dest and validates it.
// Returns true if binding and validation succeeded, false otherwise.
// When binding fails, an error is set in the request state (if available).
//
// An empty body decodes as an empty object so that handlers can report
// missing fields with their own messages.
func JSON(r *http.Request, dest any) bool {
	ctx := r.Context()

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		if HasState(ctx) {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				SetError(r, ErrPayloadTooLarge)
			} else {
				SetError(r, ErrBadRequest.WithCode("Invalid request", "Invalid JSON request body", "invalid_json"))
			}
		}
		return false
	}

	if err := validate.Struct(dest); err != nil {
		if HasState(ctx) {
			SetError(r, translateError(err))
		}
		return false
	}

	return true
}

func translateError(err error) *APIError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return ErrBadRequest.WithCode("Invalid request", err.Error(), "validation")
	}
	e := errs[0]
	return ErrBadRequest.WithCode("Invalid request", e.Field()+" "+formatTag(e.Tag(), e.Param()), e.Tag())
}

func formatTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + param + " characters"
	default:
		if param != "" {
			return "failed " + tag + "=" + param
		}
		return "failed " + tag
	}
}

// MaxBodySize returns middleware that limits request body size.
//
// Requests with a Content-Length above the limit are rejected with 413 before
// the handler runs; all other bodies are wrapped with http.MaxBytesReader so
// JSON reports 413 for chunked or mislabelled uploads.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				if HasState(r.Context()) {
					SetError(r, ErrPayloadTooLarge)
				} else {
					http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				}
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
