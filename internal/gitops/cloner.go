package gitops

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"issueshepherd/server/internal/config"
	apperrors "issueshepherd/server/internal/errors"
	"issueshepherd/server/internal/redact"
)

// CloneRequest describes a single clone invocation.
type CloneRequest struct {
	Repo       string
	TargetPath string
	Method     string
	Shallow    bool
	Branch     string
}

// CloneResult is the outcome of a successful clone.
type CloneResult struct {
	Path      string `json:"local_repo_path"`
	RemoteURL string `json:"remote_url_used"`
	Branch    string `json:"current_branch"`
}

// Cloner is the capability interface for fetching a repository to disk.
// Tests substitute a fake; production uses the git binary via GitCloner.
type Cloner interface {
	Clone(ctx context.Context, req CloneRequest) (CloneResult, error)
}

// CloneURL builds the remote URL for a repository and transport method.
func CloneURL(repo, method string) string {
	if method == "ssh" {
		return "git@github.com:" + repo + ".git"
	}
	return "https://github.com/" + repo + ".git"
}

// GitCloner shells out to the git binary.
type GitCloner struct {
	binary  string
	timeout time.Duration
}

// NewGitCloner builds a GitCloner from configuration.
func NewGitCloner(cfg config.GitConfig) *GitCloner {
	return &GitCloner{binary: cfg.Binary, timeout: cfg.CloneTimeout()}
}

// Clone validates the target, runs git clone and reports the checked-out
// branch. The target directory is the only filesystem state touched, and
// only by git itself.
func (g *GitCloner) Clone(ctx context.Context, req CloneRequest) (CloneResult, error) {
	if _, err := exec.LookPath(g.binary); err != nil {
		return CloneResult{}, apperrors.Newf(apperrors.CodeGitNotFound,
			"git binary %q not found in PATH", g.binary).
			WithHint("install git from https://git-scm.com/downloads and ensure it is on PATH")
	}

	target, err := EnsureCloneTarget(req.TargetPath)
	if err != nil {
		return CloneResult{}, err
	}

	url := CloneURL(req.Repo, req.Method)
	args := []string{"clone"}
	if req.Shallow {
		args = append(args, "--depth", "1")
	}
	if req.Branch != "" {
		args = append(args, "--branch", req.Branch)
	}
	args = append(args, url, target)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	stderr, exitCode, err := g.run(ctx, "", args...)
	if ctx.Err() == context.DeadlineExceeded {
		return CloneResult{}, apperrors.Newf(apperrors.CodeCloneFailed,
			"clone did not finish within %s", g.timeout).
			WithHint("the repository may be large; try shallow=true")
	}
	if err != nil || exitCode != 0 {
		return CloneResult{}, cloneError(req.Repo, url, stderr, exitCode)
	}

	return CloneResult{
		Path:      target,
		RemoteURL: url,
		Branch:    g.currentBranch(ctx, target),
	}, nil
}

// cloneError classifies git's stderr into the error taxonomy. The output
// is redacted before it is attached anywhere.
func cloneError(repo, url, stderr string, exitCode int) error {
	msg := redact.Token(strings.TrimSpace(stderr))

	switch {
	case strings.Contains(msg, "already exists"):
		return apperrors.Newf(apperrors.CodePathConflict,
			"clone target already exists: %s", msg)
	case strings.Contains(msg, "Repository not found"), strings.Contains(msg, "could not read"):
		return apperrors.Newf(apperrors.CodeCloneFailed,
			"repository not found or inaccessible: %s", repo).
			WithHint("check the repository name and your access to it").
			WithDetail("clone_url", url).
			WithDetail("git_error", msg)
	case strings.Contains(msg, "Permission denied"):
		return apperrors.New(apperrors.CodeCloneFailed,
			"permission denied during clone").
			WithHint("if using ssh, check that your SSH keys are set up").
			WithDetail("clone_url", url).
			WithDetail("git_error", msg)
	default:
		return apperrors.Newf(apperrors.CodeCloneFailed,
			"git clone failed (exit %d): %s", exitCode, msg).
			WithDetail("clone_url", url)
	}
}

// currentBranch returns the checked-out branch, or "unknown".
func (g *GitCloner) currentBranch(ctx context.Context, repoPath string) string {
	out, exitCode, err := g.runOut(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || exitCode != 0 {
		return "unknown"
	}
	return strings.TrimSpace(out)
}

// run executes git and returns stderr and the exit code.
func (g *GitCloner) run(ctx context.Context, dir string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, g.binary, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	return stderr.String(), exitCode, err
}

// runOut executes git and returns stdout and the exit code.
func (g *GitCloner) runOut(ctx context.Context, dir string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, g.binary, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	return stdout.String(), exitCode, err
}
