package gitops

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "issueshepherd/server/internal/errors"
)

func TestValidate_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	verdict, err := Validate(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Exists || !verdict.IsDir {
		t.Errorf("verdict = %+v, want existing directory", verdict)
	}
	if !verdict.IsEmpty {
		t.Error("expected is_empty for fresh temp dir")
	}
	if !verdict.IsWritable {
		t.Error("expected is_writable for fresh temp dir")
	}
	if !verdict.Ready {
		t.Error("expected ready for empty writable dir")
	}
	if verdict.ResolvedPath == "" || !filepath.IsAbs(verdict.ResolvedPath) {
		t.Errorf("resolved path %q should be absolute", verdict.ResolvedPath)
	}
}

func TestValidate_NonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	verdict, err := Validate(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.IsEmpty {
		t.Error("expected is_empty=false")
	}
	if verdict.Ready {
		t.Error("expected ready=false when must_be_empty and dir has entries")
	}
	if len(verdict.ContentsPreview) != 1 || verdict.ContentsPreview[0] != "existing.txt" {
		t.Errorf("contents preview = %v", verdict.ContentsPreview)
	}

	// Emptiness stops mattering when the caller does not require it.
	verdict, err = Validate(dir, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Ready {
		t.Error("expected ready=true when must_be_empty=false")
	}
}

func TestValidate_MissingPath(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "clone-here")

	verdict, err := Validate(target, true)
	if err != nil {
		t.Fatalf("missing path must not error, got %v", err)
	}
	if verdict.Exists {
		t.Error("expected exists=false")
	}
	if !verdict.Creatable {
		t.Error("expected creatable=true under a writable parent")
	}
	if !verdict.Ready {
		t.Error("expected ready=true for creatable missing path")
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("Validate must not create the directory")
	}
}

func TestValidate_FileConflict(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Validate(file, true)
	e, ok := apperrors.As(err)
	if !ok || e.Code != apperrors.CodePathConflict {
		t.Fatalf("got %v, want PATH_CONFLICT", err)
	}
}

func TestEnsureCloneTarget(t *testing.T) {
	t.Run("missing path passes", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "fresh")
		resolved, err := EnsureCloneTarget(target)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resolved != target {
			t.Errorf("resolved = %q, want %q", resolved, target)
		}
	})

	t.Run("empty dir passes", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := EnsureCloneTarget(dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("non-empty dir rejected", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := EnsureCloneTarget(dir)
		e, ok := apperrors.As(err)
		if !ok || e.Code != apperrors.CodePathNotEmpty {
			t.Fatalf("got %v, want PATH_NOT_EMPTY", err)
		}
	})

	t.Run("unwritable parent rejected", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permission checks are meaningless as root")
		}
		parent := t.TempDir()
		if err := os.Chmod(parent, 0o555); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { os.Chmod(parent, 0o755) })

		_, err := EnsureCloneTarget(filepath.Join(parent, "child"))
		e, ok := apperrors.As(err)
		if !ok || e.Code != apperrors.CodePermissionDenied {
			t.Fatalf("got %v, want PERMISSION_DENIED", err)
		}
	})
}
