package handlers

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"mime"
	"net/http"

	apiContext "cardsheets/internal/api/context"
	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/pkg/validator"

	"github.com/julienschmidt/httprouter"
)

const maxBodyBytes = 4 << 20

var errUnsupportedMediaType = stdErrors.New("Content-Type must be application/json")

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errUnsupportedMediaType
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Invalid request body: %v", err)
	}
	return nil
}

// writeValidationError writes a 400 for go-playground validation failures
// and reports whether it did.
func writeValidationError(w http.ResponseWriter, err error) bool {
	details := validator.Details(err)
	if details == nil {
		return false
	}
	errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Validation failed", details)
	return true
}

func param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return ps.ByName(name)
}
