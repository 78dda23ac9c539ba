package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

// StepID uniquely identifies a step within a run.
// Format: module:kind:discriminator (e.g., "base:packages:git").
type StepID struct {
	value string
}

// Errors for StepID validation.
var (
	ErrEmptyStepID   = errors.New("step ID cannot be empty")
	ErrInvalidStepID = errors.New("step ID format invalid: colon-separated segments of letters, digits and _ . / + @ -")
)

var (
	stepIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_.@+][a-zA-Z0-9_./+@-]*(?::[a-zA-Z0-9_.@+][a-zA-Z0-9_./+@-]*)*$`)
	segmentInvalid = regexp.MustCompile(`[^a-zA-Z0-9_./+@-]+`)
)

// NewStepID creates a StepID from a string.
func NewStepID(value string) (StepID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StepID{}, ErrEmptyStepID
	}
	if !stepIDPattern.MatchString(trimmed) {
		return StepID{}, ErrInvalidStepID
	}
	return StepID{value: trimmed}, nil
}

// MustNewStepID creates a StepID, panicking on error.
func MustNewStepID(value string) StepID {
	id, err := NewStepID(value)
	if err != nil {
		panic("invalid step ID: " + value + ": " + err.Error())
	}
	return id
}

// JoinStepID builds a StepID from free-form segments such as a module name,
// a kind and a file path. Each segment is passed through SanitizeSegment.
func JoinStepID(segments ...string) (StepID, error) {
	clean := make([]string, 0, len(segments))
	for _, s := range segments {
		if c := SanitizeSegment(s); c != "" {
			clean = append(clean, c)
		}
	}
	return NewStepID(strings.Join(clean, ":"))
}

// SanitizeSegment makes s usable as a StepID segment. One leading "/" is
// dropped so absolute paths read naturally. Any other change (runs of
// disallowed characters replaced with "_", leading separators trimmed) appends
// "@" and a digest of s, so distinct inputs never share a segment.
func SanitizeSegment(s string) string {
	raw := strings.TrimPrefix(s, "/")
	if raw == "" {
		return ""
	}
	clean := strings.TrimLeft(segmentInvalid.ReplaceAllString(raw, "_"), "-/")
	if clean == raw {
		return clean
	}
	return clean + "@" + segmentDigest(s)
}

func segmentDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}

// String returns the string representation.
func (id StepID) String() string {
	return id.value
}

// Equals checks equality with another StepID.
func (id StepID) Equals(other StepID) bool {
	return id.value == other.value
}

// Module extracts the first segment, which by convention names the module.
func (id StepID) Module() string {
	module, _, _ := strings.Cut(id.value, ":")
	return module
}

// IsZero returns true if this is a zero-value StepID.
func (id StepID) IsZero() bool {
	return id.value == ""
}
