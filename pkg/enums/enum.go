// Package enums holds the string-backed enumerations persisted in the
// database and carried in tokens and events.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](value string, valid []T, kind string) (T, error) {
	if i := slices.Index(valid, T(value)); i >= 0 {
		return valid[i], nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
