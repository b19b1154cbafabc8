package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v as JSON with the given status code. Status responses
// are never cached so keep-alive pings always reach the process.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
