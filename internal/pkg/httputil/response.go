// Package httputil holds the response helpers and middlewares of the ops server.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// JSON writes v as a bare JSON document.
func JSON(w http.ResponseWriter, status int, v any) {
	write(w, status, v)
}

// Success writes v wrapped as {"data": v}.
func Success(w http.ResponseWriter, status int, v any) {
	write(w, status, map[string]any{"data": v})
}

// Error writes {"error": {"message": message}}.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, map[string]any{
		"error": map[string]string{"message": message},
	})
}

// Text writes a plain text body, used by the health endpoints.
func Text(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
