// Package detector implements a pure
// function that classifies captured pane output into a SessionState via
// an ordered, explicitly configurable pattern table. It is the only
// place state classification lives, grounded in the same "observe, don't
// interpret" philosophy the teacher project applies to git porcelain
// output (internal/git.GetConflictingFiles) — here applied to assistant
// pane text instead.
package detector

import (
	"regexp"
	"strings"
)

// State is the tagged enumeration of observable session states.
type State string

const (
	StateIdle    State = "idle"
	StateBusy    State = "busy"
	StateWaiting State = "waiting"
	StateDone    State = "done"
	StateError   State = "error"
	StatePaused  State = "paused"
	StateUnknown State = "unknown"
)

// sortRank implements the board's UI sort order:
// Waiting > Busy > Error > Paused > Done > Idle > Unknown.
var sortRank = map[State]int{
	StateWaiting: 6,
	StateBusy:    5,
	StateError:   4,
	StatePaused:  3,
	StateDone:    2,
	StateIdle:    1,
	StateUnknown: 0,
}

// Less reports whether a sorts before b under the board's UI ordering
// (higher-rank states first).
func Less(a, b State) bool {
	return sortRank[a] > sortRank[b]
}

// Pattern is one entry of the ordered pattern table.
type Pattern struct {
	Class State
	Regex *regexp.Regexp
}

// DefaultTable is the ordered pattern table used by Classify. Priority
// classes are checked in this fixed order: Error, Done, Waiting,
// default (Busy if non-empty tail, else Idle). It is data, not code, so
// new assistant output styles can be accommodated by extending it.
var DefaultTable = []Pattern{
	{StateError, regexp.MustCompile(`(?i)\bError:`)},
	{StateError, regexp.MustCompile(`(?i)\bException:`)},
	{StateError, regexp.MustCompile(`\bFAILED\b`)},
	{StateError, regexp.MustCompile(`(?i)\bfatal error\b`)},
	{StateError, regexp.MustCompile(`(?i)\bpanic:`)},

	{StateDone, regexp.MustCompile(`(?i)Task completed`)},
	{StateDone, regexp.MustCompile(`(?i)Successfully completed`)},
	{StateDone, regexp.MustCompile(`(?i)All done`)},
	{StateDone, regexp.MustCompile(`(✓|✔)\s*completed`)},

	{StateWaiting, regexp.MustCompile(`\[(y/n|Y/n|yes/no)\]`)},
	{StateWaiting, regexp.MustCompile(`(?i)Do you want to`)},
	{StateWaiting, regexp.MustCompile(`(?i)Press Enter`)},
	{StateWaiting, regexp.MustCompile(`(?i)waiting for`)},
	{StateWaiting, regexp.MustCompile(`(?i)Approve\?`)},
}

// TailLines is the number of trailing lines of captured output the
// classifier examines.
const TailLines = 100

// Classify maps captured pane output to a SessionState by applying
// DefaultTable against the last TailLines lines of output, checking
// priority classes in order: Error, Done, Waiting, then Busy/Idle.
// Within a priority class, the first matching pattern wins; across
// classes, Error beats Done beats Waiting beats the default — so a tail
// that matches both an Error and a Waiting pattern classifies as Error,
// and one matching both Done and Waiting classifies as Done.
func Classify(output string) State {
	tail := lastLines(output, TailLines)

	for _, class := range []State{StateError, StateDone, StateWaiting} {
		for _, p := range DefaultTable {
			if p.Class != class {
				continue
			}
			if p.Regex.MatchString(tail) {
				return class
			}
		}
	}

	if strings.TrimSpace(tail) != "" {
		return StateBusy
	}
	return StateIdle
}

func lastLines(s string, n int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
