// Package slate provides naming helpers for capture takes. The conventions
// mirror what the operator console writes into recorded take metadata, so
// anything that names a clip on disk should go through these functions.
package slate

import (
	"fmt"
	"strings"
	"time"
)

// CaptureName builds the canonical clip name for a slate/take pair,
// e.g. CaptureName("sceneA", 3) == "sceneA_T3".
func CaptureName(slate string, take int) string {
	return fmt.Sprintf("%s_T%d", slate, take)
}

// DateString formats t as a compact two-digit-year date, e.g. "240307".
func DateString(t time.Time) string {
	return t.Format("060102")
}

// RemovePrefix returns s with the leading prefix stripped if present,
// otherwise s unchanged.
func RemovePrefix(s, prefix string) string {
	return strings.TrimPrefix(s, prefix)
}
