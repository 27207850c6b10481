package gitclient

import (
	"context"
	"strings"
)

// MergeProbe is the result of a read-only merge simulation: either the
// merge would be clean, or it lists the paths that would conflict.
// Spec §4.4 requires this probe never touch the working tree or index —
// Testable Property 7 ("merge probe purity").
type MergeProbe struct {
	Clean     bool
	Conflicts []string
}

// MergeTreeProbe simulates merging base into the current HEAD of this
// worktree using `git merge-tree`, which operates purely on git's object
// database and never writes to the index or working tree. This replaces
// the teacher project's CheckConflicts, which performed a real
// `merge --no-commit` and then aborted it — an approach that mutates
// HEAD and the working tree mid-probe and would violate the
// purity invariant under concurrent worktree use. See DESIGN.md.
func (c *Client) MergeTreeProbe(ctx context.Context, base string) (MergeProbe, error) {
	_, err := c.git(ctx, DefaultTimeout, "merge-tree", "--write-tree", "--name-only", "HEAD", base)
	if err == nil {
		return MergeProbe{Clean: true}, nil
	}

	var gitErr *GitError
	if ge, ok := err.(*GitError); ok {
		gitErr = ge
	}
	if gitErr == nil {
		return MergeProbe{}, err
	}

	// git merge-tree exits non-zero on conflict. Its stdout starts with
	// the resulting tree id on its own line, then (with --name-only) one
	// conflicting path per line, then a blank line and informational
	// messages. Only the path list is kept.
	conflicts := parseConflictPaths(gitErr.Stdout)
	if len(conflicts) == 0 {
		return MergeProbe{}, err
	}
	return MergeProbe{Clean: false, Conflicts: conflicts}, nil
}

func parseConflictPaths(stdout string) []string {
	lines := strings.Split(stdout, "\n")
	if len(lines) > 0 {
		// The first line is the tree id, not a path.
		lines = lines[1:]
	}
	var paths []string
	seen := map[string]bool{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, " ") {
			// merge-tree's informational lines contain spaces or are
			// blank; conflicting paths are bare relative paths.
			continue
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}
	return paths
}

// FilterDataDir removes paths that lie within the issue tool's data
// directory from a conflict list (this is the merge protocol's step 2
// "Conflict in .beads/ is filtered").
func FilterDataDir(paths []string, dataDir string) []string {
	dataDir = strings.TrimSuffix(dataDir, "/") + "/"
	var out []string
	for _, p := range paths {
		if strings.HasPrefix(p, dataDir) {
			continue
		}
		out = append(out, p)
	}
	return out
}
