// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON API: the category pickers, product
// search and price history, saved searches and shares, and the admin
// screens. Handlers are grouped by area into structs holding their
// dependencies, the way the router mounts them.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nutricompare/internal/apperrors"
)

// maxBodyBytes caps request bodies. Comparison payloads carry whole product
// lists, so this is larger than a typical form.
const maxBodyBytes = 4 << 20

// writeJSON sends data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Validation("request body too large")
		}
		return apperrors.Validation(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// statusFor maps the service error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage is the part of err safe to show the caller. Validation and
// not-found messages are user-facing; everything else is generic.
func clientMessage(err error, status int) string {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		msg := err.Error()
		if i := strings.Index(msg, apperrors.ErrValidation.Error()+": "); i >= 0 {
			msg = msg[i+len(apperrors.ErrValidation.Error())+2:]
		}
		return upperFirst(msg)
	case errors.Is(err, apperrors.ErrNotFound):
		return "Not found"
	case errors.Is(err, apperrors.ErrConfiguration):
		return "API token not configured"
	case status == http.StatusGatewayTimeout:
		return "Upstream request timed out"
	default:
		return "Internal server error"
	}
}

// fail logs err and writes the mapped status and message.
func fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op, "error", err)
	} else {
		slog.Debug(op, "error", err)
	}
	writeError(w, status, clientMessage(err, status))
}

// pathID parses the {name} URL parameter as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// sortParams reads ?sort= and ?order= (asc|desc, default desc).
func sortParams(r *http.Request) (field string, asc bool) {
	q := r.URL.Query()
	return q.Get("sort"), strings.EqualFold(q.Get("order"), "asc")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
