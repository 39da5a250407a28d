// Package service holds the business rules of the recipe API.
//
//	Handler (HTTP) → Service (validation, ownership, orchestration) → Repository (SQL)
//
// Services take plain Go values, never *http.Request, and return apperror
// values the handler layer maps to status codes. They depend on repository
// interfaces, so tests run against in-memory fakes.
package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sakif/recipe-api/internal/apperror"
)

// MaxNameLength bounds recipe titles, links and label names.
const MaxNameLength = 255

const (
	msgRequired = "This field is required."
	msgBlank    = "This field may not be blank."
)

func msgTooLong(n int) string {
	return fmt.Sprintf("Ensure this field has no more than %d characters.", n)
}

// checkName trims s and records a blank or too-long error for field.
func checkName(v *apperror.Validation, field, s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		v.Add(field, msgBlank)
	case utf8.RuneCountInString(s) > MaxNameLength:
		v.Add(field, msgTooLong(MaxNameLength))
	}
	return s
}

// checkLabelNames validates nested label items and drops duplicates,
// keeping the first occurrence.
func checkLabelNames(v *apperror.Validation, field string, names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		switch {
		case n == "":
			v.Add(field, "Label name may not be blank.")
			continue
		case utf8.RuneCountInString(n) > MaxNameLength:
			v.Add(field, "Label name: "+msgTooLong(MaxNameLength))
			continue
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
