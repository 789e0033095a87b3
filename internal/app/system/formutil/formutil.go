// Package formutil decodes JSON request bodies and the identifiers they carry.
//
// Handlers call DecodeJSON first and render a validation error when it fails:
//
//	var req confirmRequest
//	if err := formutil.DecodeJSON(w, r, &req); err != nil {
//		uierrors.RenderBadRequest(w, err.Error())
//		return
//	}
package formutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxBodyBytes caps request bodies. Every JSON body in this service is a
// handful of short fields.
const MaxBodyBytes = 64 << 10

// ErrEmptyBody is returned when the request carries no body at all.
var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes a single JSON object from r into dst. Trailing data
// after the object is rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)
		}
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ObjectID parses a hex object id, tolerating surrounding whitespace.
func ObjectID(s string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil || id.IsZero() {
		return primitive.NilObjectID, false
	}
	return id, true
}
