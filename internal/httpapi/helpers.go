package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rendis/actionwait/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "error": msg})
}

// writeOpcodeError writes err, keeping its code and details when it has them.
func writeOpcodeError(w http.ResponseWriter, status int, err error) {
	var oe *schema.OpcodeError
	if errors.As(err, &oe) {
		writeJSON(w, status, map[string]any{
			"code":    oe.Code,
			"error":   oe.Error(),
			"path":    oe.Path,
			"details": oe.Details,
		})
		return
	}
	writeError(w, status, "INTERNAL", err.Error())
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
