package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// DecodeJSON decodes the request body into dst. An empty body leaves dst
// untouched so that schema validation reports the missing fields.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return Wrap(err, http.StatusRequestEntityTooLarge, CodeInvalidRequestBody, "request body too large")
	}

	return Wrap(err, http.StatusBadRequest, CodeInvalidRequestBody, "invalid request body")
}
