package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jitheshjr/hostel"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("api: encode response", "error", err)
	}
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, hostel.ErrInvalidInput):
		return http.StatusBadRequest
	case hostel.IsNotFound(err):
		return http.StatusNotFound
	case hostel.IsConflict(err):
		return http.StatusConflict
	case hostel.IsUserCorrectable(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorBody{Error: err.Error()}

	var ve hostel.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "api: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		body.Error = "internal error"
	}
	a.writeJSON(w, status, body)
}

// decode reads a JSON body into dst and validates it.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return hostel.ValidationError{Field: "body", Message: err.Error()}
	}
	if err := a.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return hostel.ValidationError{Field: fe.Field(), Message: describe(fe)}
		}
		return hostel.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "numeric":
		return "must be a decimal amount"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}
