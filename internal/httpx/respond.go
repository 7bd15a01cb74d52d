// Package httpx holds the JSON response envelope shared by every handler.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Debug widens 500 responses with error detail. Never enable in production.
var Debug bool

// Response is the uniform JSON envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Response{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope.
func Fail(w http.ResponseWriter, status int, message string) {
	write(w, status, Response{Success: false, Message: message})
}

// FailDetail writes a failure envelope carrying diagnostic detail.
// Callers gate the detail on Debug themselves.
func FailDetail(w http.ResponseWriter, status int, message, detail string) {
	write(w, status, Response{Success: false, Message: message, Detail: detail})
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
