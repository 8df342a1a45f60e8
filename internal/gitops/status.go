package gitops

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// probeTimeout bounds each git status command; these are local-only calls.
const probeTimeout = 5 * time.Second

// RepoStatus is a snapshot of a local repository's working tree.
type RepoStatus struct {
	IsGitRepo             bool   `json:"is_git_repo"`
	CurrentBranch         string `json:"current_branch,omitempty"`
	HasUncommittedChanges bool   `json:"has_uncommitted_changes"`
	StatusSummary         string `json:"status_summary,omitempty"`
	Error                 string `json:"error,omitempty"`
}

// StatusProber reports the state of a local repository. GitCloner is the
// production implementation.
type StatusProber interface {
	Status(ctx context.Context, repoPath string) RepoStatus
}

// Status probes a local repository with short-lived git commands. Failures
// are reported inside the snapshot rather than as errors, since status is
// advisory context for guidance output.
func (g *GitCloner) Status(ctx context.Context, repoPath string) RepoStatus {
	if _, err := exec.LookPath(g.binary); err != nil {
		return RepoStatus{Error: "git not installed"}
	}

	resolved, err := resolvePath(repoPath)
	if err != nil {
		return RepoStatus{Error: "invalid repository path"}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, exitCode, err := g.runOut(ctx, resolved, "rev-parse", "--git-dir"); err != nil || exitCode != 0 {
		return RepoStatus{Error: "not a git repository"}
	}

	status := RepoStatus{
		IsGitRepo:     true,
		CurrentBranch: g.currentBranch(ctx, resolved),
	}

	out, exitCode, err := g.runOut(ctx, resolved, "status", "--porcelain")
	if err != nil || exitCode != 0 {
		status.Error = "could not read working tree status"
		return status
	}

	out = strings.TrimSpace(out)
	status.HasUncommittedChanges = out != ""
	if status.HasUncommittedChanges {
		status.StatusSummary = out
	} else {
		status.StatusSummary = "Working tree clean"
	}
	return status
}
