package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openpixel/pixood/internal/device"
	"github.com/openpixel/pixood/internal/scene"
	"github.com/openpixel/pixood/internal/store"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes the flat error shape consumed by dashboards.
// Stack traces and internal detail never cross this boundary.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeOperationError maps a scheduler or store error to a status code.
func writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownDevice):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scene.ErrUnknownScene),
		errors.Is(err, device.ErrInvalidBrightness),
		errors.Is(err, device.ErrUnknownDriverKind),
		errors.Is(err, device.ErrUnknownDeviceType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
