package mux

import "fmt"

// TmuxError wraps a failed multiplexer invocation with the operation and
// session it targeted, mirroring gitclient.GitError's shape.
type TmuxError struct {
	Op      string
	Session string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *TmuxError) Error() string {
	msg := fmt.Sprintf("tmux %s failed for session %s", e.Op, e.Session)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TmuxError) Unwrap() error {
	return e.Err
}
