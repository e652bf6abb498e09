package api

import (
	"encoding/json"
	"net/http"

	"captive-portal/internal/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// API-only codes. Everything else comes from domain.Code.
const (
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeBadRequest   = "BAD_REQUEST"
)

var httpStatus = map[string]int{
	"UNKNOWN_PACKAGE":      http.StatusBadRequest,
	"INVALID_PLAN":         http.StatusBadRequest,
	"INVALID_QUANTITY":     http.StatusBadRequest,
	"VALIDATION_ERROR":     http.StatusBadRequest,
	CodeBadRequest:         http.StatusBadRequest,
	CodeUnauthorized:       http.StatusUnauthorized,
	"FORBIDDEN":            http.StatusForbidden,
	"NOT_FOUND":            http.StatusNotFound,
	"ALREADY_USED":         http.StatusConflict,
	"NOT_PENDING":          http.StatusConflict,
	"ALREADY_EXISTS":       http.StatusConflict,
	"INVALID_TRANSITION":   http.StatusConflict,
	"CONFLICT":             http.StatusConflict,
	"CODE_SPACE_EXHAUSTED": http.StatusConflict,
	CodeRateLimited:        http.StatusTooManyRequests,
	"GATEWAY_ERROR":        http.StatusBadGateway,
	"GATEWAY_UNAVAILABLE":  http.StatusServiceUnavailable,
	"STORAGE_ERROR":        http.StatusInternalServerError,
	"INTERNAL":             http.StatusInternalServerError,
}

// Fixed client-facing text. Driver and provider details stay in the logs.
var messages = map[string]string{
	"UNKNOWN_PACKAGE":      "Unknown package",
	"INVALID_PLAN":         "Invalid plan",
	"INVALID_QUANTITY":     "Quantity must be between 1 and 100",
	"VALIDATION_ERROR":     "Invalid request",
	CodeBadRequest:         "Malformed request body",
	CodeUnauthorized:       "Authentication required",
	"FORBIDDEN":            "Admin privileges required",
	"NOT_FOUND":            "Not found",
	"ALREADY_USED":         "Access code already used",
	"NOT_PENDING":          "Access code is not awaiting activation",
	"ALREADY_EXISTS":       "Already exists",
	"INVALID_TRANSITION":   "Invalid state transition",
	"CONFLICT":             "Conflict",
	"CODE_SPACE_EXHAUSTED": "No more access codes can be generated",
	CodeRateLimited:        "Too many requests",
	"GATEWAY_ERROR":        "Payment provider error",
	"GATEWAY_UNAVAILABLE":  "Payment provider unavailable",
	"STORAGE_ERROR":        "Internal error",
	"INTERNAL":             "Internal error",
}

// StatusFor maps a stable error code to its HTTP status.
func StatusFor(code string) int {
	if s, ok := httpStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCode(w http.ResponseWriter, code string) {
	writeJSON(w, StatusFor(code), errorEnvelope{Error: errorBody{Code: code, Message: messages[code]}})
}

func writeError(w http.ResponseWriter, err error) {
	writeCode(w, domain.Code(err))
}
