package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	engerrors "github.com/fractalvote/deliberation/internal/domain/errors"
)

// APIError is the JSON body returned for any non-2xx response.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status}
}

// TranslateError maps an engine error to the APIError it should produce
// on the wire. An *engerrors.EngineError carries its own stable Code;
// everything else is an unclassified failure and comes back as 500.
func TranslateError(err error) *APIError {
	var ee *engerrors.EngineError
	if errors.As(err, &ee) {
		switch ee.Kind {
		case engerrors.KindPreconditionFailed:
			return NewAPIError(http.StatusBadRequest, ee.Code, ee.Message)
		case engerrors.KindConflict:
			return NewAPIError(http.StatusConflict, ee.Code, ee.Message)
		case engerrors.KindNotFound:
			return NewAPIError(http.StatusNotFound, ee.Code, ee.Message)
		case engerrors.KindTransient:
			return NewAPIError(http.StatusServiceUnavailable, "TRANSIENT", ee.Message)
		case engerrors.KindFatal:
			return NewAPIError(http.StatusInternalServerError, "FATAL", ee.Message)
		}
	}
	return NewAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

// writeError translates err and writes it as a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	apiErr := TranslateError(err)
	writeJSON(w, apiErr.HTTPStatus, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
