package gitclient

import "fmt"

// GitError wraps a failed git invocation with the operation label and
// worktree it ran against, the way the teacher's GitError carries
// Command/Args/Stdout/Stderr. Callers observe Stdout/Stderr rather than
// having the client try to interpret git's porcelain text.
type GitError struct {
	Op       string
	Worktree string
	Args     []string
	Stdout   string
	Stderr   string
	Err      error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s failed in %s", e.Op, e.Worktree)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GitError) Unwrap() error {
	return e.Err
}
