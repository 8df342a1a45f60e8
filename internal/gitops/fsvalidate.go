// Package gitops covers the local side of a contribution: validating
// clone targets, invoking the git binary and probing repository state.
package gitops

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	apperrors "issueshepherd/server/internal/errors"
)

// contentsPreviewMax bounds the directory listing carried in a verdict.
const contentsPreviewMax = 10

// PathVerdict is the result of inspecting a clone target. Derived fresh
// on every call; Validate never creates, deletes or modifies anything.
type PathVerdict struct {
	Exists          bool     `json:"exists"`
	IsDir           bool     `json:"is_dir"`
	IsEmpty         bool     `json:"is_empty"`
	IsWritable      bool     `json:"is_writable"`
	Creatable       bool     `json:"creatable"`
	Ready           bool     `json:"ready"`
	ResolvedPath    string   `json:"resolved_path"`
	ContentsPreview []string `json:"contents_preview,omitempty"`
}

// Validate inspects a target path for cloning. A missing path is not an
// error: the verdict reports whether it could be created, and creation is
// left to the clone step.
func Validate(targetPath string, mustBeEmpty bool) (PathVerdict, error) {
	resolved, err := resolvePath(targetPath)
	if err != nil {
		return PathVerdict{}, apperrors.Newf(apperrors.CodeValidation,
			"invalid path %q: %v", targetPath, err)
	}

	verdict := PathVerdict{ResolvedPath: resolved}

	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		verdict.Creatable = parentWritable(resolved)
		verdict.IsEmpty = true
		verdict.Ready = verdict.Creatable
		return verdict, nil
	}
	if err != nil {
		return PathVerdict{}, apperrors.Newf(apperrors.CodePermissionDenied,
			"cannot inspect path %s: %v", resolved, err)
	}

	verdict.Exists = true
	verdict.IsDir = info.IsDir()
	if !verdict.IsDir {
		return verdict, apperrors.Newf(apperrors.CodePathConflict,
			"path exists but is not a directory: %s", resolved).
			WithHint("provide a directory path, not a file")
	}

	verdict.IsWritable = writable(resolved)

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return verdict, apperrors.Newf(apperrors.CodePermissionDenied,
			"cannot read directory %s: %v", resolved, err)
	}
	verdict.IsEmpty = len(entries) == 0
	for i, entry := range entries {
		if i == contentsPreviewMax {
			break
		}
		verdict.ContentsPreview = append(verdict.ContentsPreview, entry.Name())
	}

	verdict.Ready = verdict.IsWritable && (!mustBeEmpty || verdict.IsEmpty)
	return verdict, nil
}

// EnsureCloneTarget checks that a path can receive a fresh clone and
// returns the resolved target. Missing paths pass (git creates them);
// non-empty or unwritable directories fail.
func EnsureCloneTarget(targetPath string) (string, error) {
	verdict, err := Validate(targetPath, true)
	if err != nil {
		return "", err
	}
	if !verdict.Exists {
		if !verdict.Creatable {
			return "", apperrors.Newf(apperrors.CodePermissionDenied,
				"cannot create directory at %s", verdict.ResolvedPath).
				WithHint("check write permission on the parent directory")
		}
		return verdict.ResolvedPath, nil
	}
	if !verdict.IsEmpty {
		return "", apperrors.Newf(apperrors.CodePathNotEmpty,
			"directory is not empty: %s", verdict.ResolvedPath).
			WithDetail("contents_preview", verdict.ContentsPreview).
			WithHint("choose an empty directory or clear this one first")
	}
	if !verdict.IsWritable {
		return "", apperrors.Newf(apperrors.CodePermissionDenied,
			"cannot write to directory %s", verdict.ResolvedPath)
	}
	return verdict.ResolvedPath, nil
}

// resolvePath expands a leading ~ and makes the path absolute without
// following symlinks.
func resolvePath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

// parentWritable walks up to the nearest existing ancestor and checks
// write permission there.
func parentWritable(p string) bool {
	dir := filepath.Dir(p)
	for {
		if _, err := os.Stat(dir); err == nil {
			return writable(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func writable(p string) bool {
	return unix.Access(p, unix.W_OK) == nil
}
