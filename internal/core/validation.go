package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FieldErrors collects validation failures keyed by input field. A non-empty
// map blocks the whole operation: nothing is persisted while any field is in
// error.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", k, fe[k])
	}
	return b.String()
}

// Add records a failure for field. Later calls for the same field overwrite.
func (fe FieldErrors) Add(field, format string, args ...any) {
	fe[field] = fmt.Sprintf(format, args...)
}

// AsFieldErrors unwraps err into FieldErrors if it is one.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
