package safecache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/galtl/safecache/pkg/fs"
)

// Validator checks a cache file for structural integrity.
//
// Implementations must be stateless: safe for concurrent use, and repeated
// calls on an unchanged file must return the same result.
type Validator interface {
	// Validate returns nil if the file at path is structurally valid.
	// The returned error wraps [ErrValidation].
	Validate(path string) error
}

// RecordValidator is the stock [Validator] for the translation cache
// format. It checks, short-circuiting on the first failure:
//
//  1. the file exists and is non-empty
//  2. the content parses as JSON
//  3. the top-level value is an array
//  4. every element is an object carrying all required keys, each
//     string- or integer-typed
//
// Business-level correctness of the records is out of scope.
type RecordValidator struct {
	fs  fs.FS
	log logrus.FieldLogger
}

// NewRecordValidator creates a RecordValidator. Panics if fsys is nil.
// A nil log falls back to the logrus standard logger.
func NewRecordValidator(fsys fs.FS, log logrus.FieldLogger) *RecordValidator {
	if fsys == nil {
		panic("fsys is nil")
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &RecordValidator{fs: fsys, log: log}
}

// Validate implements [Validator].
func (v *RecordValidator) Validate(path string) error {
	info, err := v.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: stat %q: %v", ErrValidation, path, err)
	}

	if info.Size() == 0 {
		return fmt.Errorf("%w: %q is empty", ErrValidation, path)
	}

	data, err := v.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %q: %v", ErrValidation, path, err)
	}

	count, err := checkRecordShape(data)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrValidation, path, err)
	}

	v.log.WithFields(logrus.Fields{
		"path":    path,
		"records": count,
		"bytes":   len(data),
	}).Debug("cache file validated")

	return nil
}

// checkRecordShape parses data and verifies the sequence-of-records shape.
// Returns the record count.
func checkRecordShape(data []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		return 0, fmt.Errorf("invalid JSON: %v", err)
	}

	// The file must be one JSON document, nothing after it.
	if err := dec.Decode(new(any)); err != io.EOF {
		return 0, fmt.Errorf("trailing data after JSON document")
	}

	elems, ok := top.([]any)
	if !ok {
		return 0, fmt.Errorf("top-level value is %T, want array", top)
	}

	for i, elem := range elems {
		obj, ok := elem.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("element %d is %T, want object", i, elem)
		}

		for _, key := range requiredRecordKeys {
			val, present := obj[key]
			if !present {
				return 0, fmt.Errorf("element %d is missing %q", i, key)
			}

			switch v := val.(type) {
			case string:
			case json.Number:
				if _, err := v.Int64(); err != nil {
					return 0, fmt.Errorf("element %d: %q is %s, want string or integer", i, key, v)
				}
			default:
				return 0, fmt.Errorf("element %d: %q is %T, want string or integer", i, key, val)
			}
		}
	}

	return len(elems), nil
}

// Compile-time interface check.
var _ Validator = (*RecordValidator)(nil)
