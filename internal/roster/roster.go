// Package roster resolves free-text student name fragments against a class
// roster and generates sequential student indices.
package roster

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rollbook/internal/record"
)

// FindByFragment returns the first student whose name contains fragment,
// case-insensitive. Substring matching is ambiguous on purpose: "Sam"
// matches both "Sampath" and "Samantha", and the first student in roster
// order wins.
func FindByFragment(students []record.Student, fragment string) (record.Student, bool) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return record.Student{}, false
	}
	for _, st := range students {
		if strings.Contains(strings.ToLower(st.Name), needle) {
			return st, true
		}
	}
	return record.Student{}, false
}

// FindMany resolves each fragment independently, partitioning into matches
// and not-found fragments. Matches follow fragment order, not roster order.
func FindMany(students []record.Student, fragments []string) (matches []record.Student, notFound []string) {
	for _, fragment := range fragments {
		if st, ok := FindByFragment(students, fragment); ok {
			matches = append(matches, st)
		} else {
			notFound = append(notFound, fragment)
		}
	}
	return matches, notFound
}

// AllExcept returns every student whose name contains none of the excluded
// fragments. An empty exclusion list returns the whole roster.
func AllExcept(students []record.Student, excluded []string) []record.Student {
	kept := make([]record.Student, 0, len(students))
	for _, st := range students {
		name := strings.ToLower(st.Name)
		skip := false
		for _, fragment := range excluded {
			needle := strings.ToLower(strings.TrimSpace(fragment))
			if needle != "" && strings.Contains(name, needle) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, st)
		}
	}
	return kept
}

var trailingDigits = regexp.MustCompile(`\d+$`)

// NextIndex computes the next class-scoped index, format {grade}{class}{seq3}.
// It takes the lexicographically last index with the class prefix, increments
// its trailing digit run, and zero-pads to three digits. Falls back to 001
// when no index matches the prefix or carries trailing digits.
func NextIndex(students []record.Student, grade int, class string) string {
	prefix := fmt.Sprintf("%d%s", grade, class)
	last := ""
	for _, st := range students {
		if strings.HasPrefix(st.Index, prefix) && st.Index > last {
			last = st.Index
		}
	}
	next := 1
	if last != "" {
		if digits := trailingDigits.FindString(last); digits != "" {
			if n, err := strconv.Atoi(digits); err == nil {
				next = n + 1
			}
		}
	}
	return fmt.Sprintf("%s%03d", prefix, next)
}
