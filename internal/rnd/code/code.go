// Package code allocates project codes of the form RND/{YY}-{YY+1}/{MM}/{NNN}.
//
// The functions here are pure: they scan a snapshot of existing codes and
// derive the next one. Callers that share state across writers must go
// through a serialising SequenceStore instead of calling Allocate directly.
package code

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Baseline is the sequence value assumed when a prefix has no codes yet,
// so the first code of a month ends in 101.
const Baseline = 100

// ErrAmbiguousSequence is reported by ParseSequence when the sequence
// segment of a code is not an integer. Allocation treats such codes as 0.
var ErrAmbiguousSequence = errors.New("code: sequence segment is not a number")

// SequenceStore hands out the next sequence number for a prefix with
// per-prefix serialisation.
type SequenceStore interface {
	Next(ctx context.Context, prefix string) (int, error)
}

// Prefix returns "RND/{YY}-{YY+1}/{MM}/" for the given instant.
func Prefix(at time.Time) string {
	yy := at.Year() % 100
	return fmt.Sprintf("RND/%02d-%02d/%02d/", yy, (yy+1)%100, int(at.Month()))
}

// Format joins a prefix and a sequence number, zero padded to three digits.
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// ParseSequence extracts the fourth slash-delimited segment of a code.
func ParseSequence(code string) (int, error) {
	parts := strings.Split(code, "/")
	if len(parts) < 4 {
		return 0, fmt.Errorf("%w: %q", ErrAmbiguousSequence, code)
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrAmbiguousSequence, code)
	}
	return n, nil
}

// MaxSequence returns the highest sequence among codes carrying exactly the
// given prefix, or Baseline when none do.
func MaxSequence(existing []string, prefix string) int {
	max := 0
	matched := false
	for _, c := range existing {
		if !strings.HasPrefix(c, prefix) {
			continue
		}
		matched = true
		n, err := ParseSequence(c)
		if err != nil {
			n = 0
		}
		if n > max {
			max = n
		}
	}
	if !matched {
		return Baseline
	}
	return max
}

// Allocate returns the next code for the month containing at.
func Allocate(existing []string, at time.Time) string {
	prefix := Prefix(at)
	return Format(prefix, MaxSequence(existing, prefix)+1)
}
