// SPDX-License-Identifier: GPL-3.0-or-later

package mgmtapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Class string `json:"class"`
}

// statusOf maps an error to an HTTP status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, simerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, simerr.ErrWriteDenied):
		return http.StatusForbidden
	case errors.Is(err, simerr.ErrInvalidValue), errors.Is(err, simerr.ErrConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	a.logger().Log(
		r.Context(),
		level,
		"httpRequestFailed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("err", err),
		slog.String("errClass", errclass.New(err)),
	)
	a.writeJSON(w, r, status, ErrorResponse{Error: err.Error(), Class: errclass.New(err)})
}

func (a *API) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger().WarnContext(
			r.Context(),
			"httpEncodeFailed",
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
		)
	}
}
