package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"spendsmart/internal/core"
)

var errBadID = errors.New("invalid id")

// decodeJSON reads one JSON value from a size-limited body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

// decodeStatus classifies a decode failure: domain validation errors raised
// while unmarshalling are 422, everything else 400.
func decodeStatus(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity, unwrapAll(err).Error()
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "request body too large"
	default:
		return http.StatusBadRequest, "malformed JSON body"
	}
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// sanitizeInput trims s and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func wantsJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "application/json")
}
