package workflow

import (
	"fmt"
	"strings"
	"unicode"
)

// Stage is a normalized review stage label
type Stage string

// StageDone is the reserved terminal stage every workflow ends in
const StageDone Stage = "done"

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// IsDone returns true if the stage is the terminal stage
func (s Stage) IsDone() bool {
	return s == StageDone
}

// Normalize canonicalizes a stage or role label: lower-cased, every run of
// non-alphanumeric runes collapsed into a single underscore, and surrounding
// underscores trimmed. "Faculty Admin", "faculty-admin" and " FACULTY__admin "
// all become "faculty_admin".
func Normalize(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	pendingSep := false
	for _, r := range label {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}

	return b.String()
}

// NewStage returns the normalized stage for a raw label
func NewStage(label string) Stage {
	return Stage(Normalize(label))
}

// Stages is an ordered list of review stages
type Stages []Stage

// ParseStages normalizes raw labels into an ordered stage list and validates it
func ParseStages(labels []string) (Stages, error) {
	stages := make(Stages, 0, len(labels))
	for _, l := range labels {
		stages = append(stages, NewStage(l))
	}
	if err := stages.Validate(); err != nil {
		return nil, err
	}
	return stages, nil
}

// Validate checks the list is non-empty, has no blank or duplicate stages and
// does not use the reserved terminal stage
func (s Stages) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: at least one stage is required", ErrInvalidTemplate)
	}

	seen := make(map[Stage]struct{}, len(s))
	for i, st := range s {
		if st == "" {
			return fmt.Errorf("%w: stage %d is blank", ErrInvalidTemplate, i)
		}
		if st.IsDone() {
			return fmt.Errorf("%w: stage name %q is reserved", ErrInvalidTemplate, StageDone)
		}
		if _, dup := seen[st]; dup {
			return fmt.Errorf("%w: duplicate stage %q", ErrInvalidTemplate, st)
		}
		seen[st] = struct{}{}
	}

	return nil
}

// First returns the entry stage
func (s Stages) First() Stage {
	if len(s) == 0 {
		return StageDone
	}
	return s[0]
}

// IndexOf returns the position of a stage or -1
func (s Stages) IndexOf(stage Stage) int {
	for i, st := range s {
		if st == stage {
			return i
		}
	}
	return -1
}

// Contains reports whether the stage belongs to the list
func (s Stages) Contains(stage Stage) bool {
	return s.IndexOf(stage) >= 0
}

// After returns the stage following the given one: the next configured stage,
// StageDone after the last stage, and false when the stage is StageDone or
// unknown.
func (s Stages) After(stage Stage) (Stage, bool) {
	idx := s.IndexOf(stage)
	if idx < 0 {
		return "", false
	}
	if idx == len(s)-1 {
		return StageDone, true
	}
	return s[idx+1], true
}

// Strings returns the stage labels
func (s Stages) Strings() []string {
	out := make([]string, len(s))
	for i, st := range s {
		out[i] = string(st)
	}
	return out
}
