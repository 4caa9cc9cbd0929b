package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrVideoNotFound),
		errors.Is(err, services.ErrChannelNotFound),
		errors.Is(err, services.ErrOwnershipNotFound),
		errors.Is(err, services.ErrBlacklistNotFound),
		errors.Is(err, services.ErrFollowNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotVideoOwner),
		errors.Is(err, services.ErrChannelNotOwned),
		errors.Is(err, services.ErrActorHostMismatch):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccountExists),
		errors.Is(err, services.ErrAlreadyBlacklisted):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidRating),
		errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, services.ErrInvalidPassword),
		errors.Is(err, services.ErrInvalidSort),
		errors.Is(err, services.ErrSameOwner),
		errors.Is(err, services.ErrVideoNotOwned),
		errors.Is(err, services.ErrOwnershipNotWaiting),
		errors.Is(err, services.ErrFollowSelf),
		errors.Is(err, services.ErrUnsupportedObject),
		errors.Is(err, federation.ErrMalformedActivity):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTransactionConflict):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError maps service errors to status codes. Internal errors are logged and
// not leaked to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeErrorMessage(w, status, http.StatusText(status))
		return
	}
	writeErrorMessage(w, status, capitalize(err.Error()))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// decodeBody reads a JSON body into dst and validates it. An empty body is accepted
// when allowEmpty is set. On failure the response is written and false returned.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		err = nil
	}
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" failed on "+fe.Tag())
	}
	return "invalid request: " + strings.Join(fields, ", ")
}
