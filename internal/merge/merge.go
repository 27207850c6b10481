// Package merge implements the Merge Protocol (spec §4.11): branch-behind
// detection, a read-only in-memory conflict probe, and — when the probe
// finds real conflicts — a real on-disk merge plus a conflict-resolution
// assistant spawned in its own multiplexer window. Grounded on the
// teacher project's polecat worktree model, generalized with
// gitclient.MergeTreeProbe's merge-tree-based purity guarantee instead
// of the teacher's merge-then-abort approach (see DESIGN.md).
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/azedarach/azedarach/internal/gitclient"
	"github.com/azedarach/azedarach/internal/mux"
)

// Git is the subset of gitclient.Client the Merge Protocol needs,
// bound to a specific session's worktree.
type Git interface {
	AheadBehind(ctx context.Context, base string) (ahead, behind int, err error)
	MergeTreeProbe(ctx context.Context, base string) (gitclient.MergeProbe, error)
	MergeCommit(ctx context.Context, base, message string) error
	StartConflictedMerge(ctx context.Context, base string) error
}

// Mux is the subset of mux.Client the Merge Protocol needs to spawn a
// conflict-resolution assistant pane.
type Mux interface {
	NewWindow(ctx context.Context, session, windowName, command string) error
	SendKeys(ctx context.Context, target, keystring string, submitEnter bool) error
}

// ConflictWindowName is the name of the multiplexer window the protocol
// creates for conflict resolution.
const ConflictWindowName = "merge"

// Result is the outcome of UpdateFromBase.
type Result struct {
	Kind      ResultKind
	Files     []string
	MergedAt  time.Time
}

// ResultKind enumerates UpdateFromBase's possible outcomes.
type ResultKind string

const (
	ResultAlreadyUpToDate  ResultKind = "already_up_to_date"
	ResultCleanMerge       ResultKind = "clean_merge"
	ResultConflictsFound   ResultKind = "conflicts_detected"
)

// Protocol implements update-from-base for a single session's worktree.
type Protocol struct {
	Git               Git
	Mux               Mux
	SessionName       string
	BaseBranch        string
	IssueDataDir      string // e.g. ".beads" — filtered out of conflict lists
	AssistantCmd      string
}

// New returns a Protocol bound to one session's worktree git client and
// the multiplexer session it should spawn a conflict window in.
func New(git Git, m Mux, sessionName, baseBranch, issueDataDir, assistantCmd string) *Protocol {
	return &Protocol{
		Git:          git,
		Mux:          m,
		SessionName:  sessionName,
		BaseBranch:   baseBranch,
		IssueDataDir: issueDataDir,
		AssistantCmd: assistantCmd,
	}
}

// UpdateFromBase runs the full protocol: ahead/behind check, a pure
// merge-tree probe, and — only when the filtered conflict set is
// non-empty — a real merge plus conflict-resolution assistant spawn.
// The probe result is always the authoritative decision; a destructive
// merge is never attempted before it.
func (p *Protocol) UpdateFromBase(ctx context.Context) (Result, error) {
	_, behind, err := p.Git.AheadBehind(ctx, p.BaseBranch)
	if err != nil {
		return Result{}, fmt.Errorf("update-from-base: ahead/behind: %w", err)
	}
	if behind == 0 {
		return Result{Kind: ResultAlreadyUpToDate}, nil
	}

	probe, err := p.Git.MergeTreeProbe(ctx, p.BaseBranch)
	if err != nil {
		return Result{}, fmt.Errorf("update-from-base: merge-tree probe: %w", err)
	}

	conflicts := gitclient.FilterDataDir(probe.Conflicts, p.IssueDataDir)

	if len(conflicts) == 0 {
		if err := p.Git.MergeCommit(ctx, p.BaseBranch, ""); err != nil {
			return Result{}, fmt.Errorf("update-from-base: merge commit: %w", err)
		}
		return Result{Kind: ResultCleanMerge, MergedAt: time.Now()}, nil
	}

	if err := p.Git.StartConflictedMerge(ctx, p.BaseBranch); err != nil {
		return Result{}, fmt.Errorf("update-from-base: start conflicted merge: %w", err)
	}
	if err := p.spawnConflictAssistant(ctx, conflicts); err != nil {
		return Result{}, fmt.Errorf("update-from-base: spawn conflict assistant: %w", err)
	}

	return Result{Kind: ResultConflictsFound, Files: conflicts}, nil
}

func (p *Protocol) spawnConflictAssistant(ctx context.Context, files []string) error {
	if err := p.Mux.NewWindow(ctx, p.SessionName, ConflictWindowName, ""); err != nil {
		return err
	}
	target := p.SessionName + ":" + ConflictWindowName
	prompt := buildConflictPrompt(files)
	keys := p.AssistantCmd + " " + mux.ShellQuote(prompt)
	return p.Mux.SendKeys(ctx, target, keys, true)
}

func buildConflictPrompt(files []string) string {
	msg := "Resolve the following merge conflicts, then commit the result:\n"
	for _, f := range files {
		msg += "- " + f + "\n"
	}
	return msg
}
