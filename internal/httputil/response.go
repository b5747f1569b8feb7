// Package httputil holds the small response and query helpers shared by
// the HTTP handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
)

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// InternalServerError writes a 500 response.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}

// AllowMethods writes a 405 response and returns false unless r uses one
// of methods.
func AllowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// QueryFloat parses an optional float query parameter. ok is false when
// the parameter is absent.
func QueryFloat(r *http.Request, key string) (v float64, ok bool, err error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %q parameter: %q", key, s)
	}
	return v, true, nil
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, key string) (v int, ok bool, err error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %q parameter: %q", key, s)
	}
	return v, true, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, key string) (v bool, ok bool, err error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return false, false, nil
	}
	v, err = strconv.ParseBool(s)
	if err != nil {
		return false, false, fmt.Errorf("invalid %q parameter: %q", key, s)
	}
	return v, true, nil
}
