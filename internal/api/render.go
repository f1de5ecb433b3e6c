package api

import (
	"encoding/json"
	"net/http"

	"github.com/sabaini/grns/internal/errors"
)

// errorBody is the stable three-field error shape required by §4.7.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ErrorCode int    `json:"error_code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as the structured error body, mapping an
// untyped error to internal.
func writeError(w http.ResponseWriter, err error) {
	e, ok := errors.As(err)
	if !ok {
		e = errors.InternalErr(err, "internal error")
	}
	writeJSON(w, e.HTTPStatus(), errorBody{
		Error:     e.Message,
		Code:      string(e.Code),
		ErrorCode: e.ErrorCode(),
	})
}

func errNotFoundProject(prefix string) error {
	return errors.NotFoundf("unknown project: %s", prefix)
}

func errRequestCanceled(cause error) error {
	return errors.InternalErr(cause, "request canceled while waiting for write admission")
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Invalidf("invalid request body: %v", err)
	}
	return nil
}
