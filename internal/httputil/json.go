package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Response status discriminators
const (
	StatusSuccess    = "success"
	StatusFail       = "fail"
	StatusError      = "error"
	StatusUnverified = "unverified"
)

// ErrInvalidBody is returned by DecodeJSON for unreadable request bodies.
var ErrInvalidBody = errors.New("invalid request body")

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes {"status": "fail"|"error", "message": ...}.
// 4xx responses use "fail", everything else "error".
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"status":  failStatus(status),
		"message": message,
	})
}

// Fail writes an error body with extra fields merged in.
func Fail(w http.ResponseWriter, status int, message string, fields map[string]any) {
	body := map[string]any{
		"status":  failStatus(status),
		"message": message,
	}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, status, body)
}

func failStatus(status int) string {
	if status >= 400 && status < 500 {
		return StatusFail
	}
	return StatusError
}

// DecodeJSON decodes a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body too large", ErrInvalidBody)
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after object", ErrInvalidBody)
	}
	return nil
}
