package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeResult sends a uniform result with a status derived from its error class.
func writeResult[T any](w http.ResponseWriter, res usecase.Result[T]) {
	status := http.StatusOK
	if !res.Success {
		status = statusFor(res.Err)
	}
	writeJSON(w, status, res)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsGeneration(err):
		return http.StatusBadGateway
	case domain.IsStore(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

var errBodyTooLarge = errors.New("request body too large")

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into dst and validates it. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
		default:
			return domain.NewValidationError("Invalid request body: %v", err)
		}
	}
	if err := validateStruct(dst); err != nil {
		return domain.NewValidationError("Validation error: %v", err)
	}
	return nil
}
