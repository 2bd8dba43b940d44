package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; all payloads here are small JSON.
const maxBodyBytes = 1 << 20

// decodeJSON strictly decodes the request body into dst. Unknown fields and
// trailing garbage are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// A second decode must hit EOF, otherwise the body had trailing data.
	if dec.More() {
		return errTrailingBody
	}
	return nil
}

var errTrailingBody = errors.New("unexpected data after JSON body")

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Warn("write response", zap.Error(err))
	}
}

// errorBody matches the original wire format for coupon and admin routes.
type errorBody struct {
	Error string `json:"error"`
}

// messageBody matches the original wire format for checkout routes.
type messageBody struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Error: msg})
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, messageBody{Message: msg})
}
