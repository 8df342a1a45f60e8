package shepherd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"issueshepherd/server/internal/config"
	apperrors "issueshepherd/server/internal/errors"
	"issueshepherd/server/internal/github"
	"issueshepherd/server/internal/gitops"
)

type fakeCloner struct {
	calls   int
	lastReq gitops.CloneRequest
	result  gitops.CloneResult
	err     error
}

func (f *fakeCloner) Clone(ctx context.Context, req gitops.CloneRequest) (gitops.CloneResult, error) {
	f.calls++
	f.lastReq = req
	return f.result, f.err
}

type fakeProber struct {
	calls  int
	status gitops.RepoStatus
}

func (f *fakeProber) Status(ctx context.Context, repoPath string) gitops.RepoStatus {
	f.calls++
	return f.status
}

// testModule wires the module against a local HTTP stub. The returned
// counter tracks how many requests reached the stub.
func testModule(t *testing.T, handler http.Handler) (*Module, *fakeCloner, *fakeProber, *int) {
	t.Helper()
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if handler != nil {
			handler.ServeHTTP(w, r)
			return
		}
		fmt.Fprint(w, `{"items": []}`)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.GitHub.APIEndpoint = srv.URL
	cfg.GitHub.TokenEnv = "GITHUB_TOKEN"
	cfg.GitHub.TimeoutSeconds = 5

	cloner := &fakeCloner{result: gitops.CloneResult{
		Path:      "/tmp/clone",
		RemoteURL: "https://github.com/octocat/hello-world.git",
		Branch:    "main",
	}}
	prober := &fakeProber{status: gitops.RepoStatus{IsGitRepo: true, CurrentBranch: "fix-widget"}}

	m := New(cfg, github.NewClient(cfg.GitHub), cloner, prober)
	return m, cloner, prober, &requests
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("expected *apperrors.Error, got %T: %v", err, err)
	}
	return string(appErr.Code)
}

func TestToolDefinitionsMatchHandlers(t *testing.T) {
	m, _, _, _ := testModule(t, nil)
	if len(toolDefinitions) != len(m.handlers) {
		t.Fatalf("%d tool definitions but %d handlers", len(toolDefinitions), len(m.handlers))
	}
	for _, tool := range toolDefinitions {
		if _, ok := m.handlers[tool.Name]; !ok {
			t.Errorf("tool %q has no handler", tool.Name)
		}
		if tool.Annotations == nil {
			t.Errorf("tool %q has no annotations", tool.Name)
		}
	}
}

func TestExecuteTool_Unknown(t *testing.T) {
	m, _, _, _ := testModule(t, nil)
	if _, err := m.ExecuteTool(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestSearchIssues_LimitRejectedBeforeNetwork(t *testing.T) {
	for _, limit := range []float64{0, 31, -5} {
		m, _, _, requests := testModule(t, nil)
		_, err := m.ExecuteTool(context.Background(), "search_issues", map[string]any{
			"repo":  "octocat/hello-world",
			"limit": limit,
		})
		if code := errCode(t, err); code != "VALIDATION_ERROR" {
			t.Errorf("limit %v: code = %s", limit, code)
		}
		if *requests != 0 {
			t.Errorf("limit %v: %d requests made, want 0", limit, *requests)
		}
	}
}

func TestSearchIssues_RepoRequired(t *testing.T) {
	m, _, _, requests := testModule(t, nil)
	_, err := m.ExecuteTool(context.Background(), "search_issues", map[string]any{})
	if code := errCode(t, err); code != "VALIDATION_ERROR" {
		t.Errorf("code = %s", code)
	}
	if *requests != 0 {
		t.Errorf("%d requests made, want 0", *requests)
	}
}

func TestSearchIssues_Success(t *testing.T) {
	m, _, _, _ := testModule(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); !strings.Contains(got, "repo:octocat/hello-world") {
			t.Errorf("q = %q", got)
		}
		w.Header().Set("X-RateLimit-Remaining", "9")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		fmt.Fprint(w, `{
			"items": [{
				"repository_url": "https://api.github.com/repos/octocat/hello-world",
				"number": 7,
				"title": "Fix the widget",
				"html_url": "https://github.com/octocat/hello-world/issues/7",
				"labels": [{"name": "good first issue"}],
				"comments": 2,
				"state": "open",
				"body": "The widget is broken."
			}]
		}`)
	}))

	out, err := m.ExecuteTool(context.Background(), "search_issues", map[string]any{
		"repo":       "octocat/hello-world",
		"difficulty": "good-first-issue",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"ok": true`, `"total_found": 1`, "Fix the widget", "good first issue", `"remaining": 9`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSearchIssues_GlobalWithoutFacets(t *testing.T) {
	m, _, _, requests := testModule(t, nil)
	_, err := m.ExecuteTool(context.Background(), "search_issues", map[string]any{
		"mode": "global",
	})
	if code := errCode(t, err); code != "INVALID_QUERY" {
		t.Errorf("code = %s", code)
	}
	if *requests != 0 {
		t.Errorf("%d requests made, want 0", *requests)
	}
}

func TestDiscoverRepository(t *testing.T) {
	m, _, _, _ := testModule(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/repositories" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query().Get("q")
		for _, want := range []string{"language:go", "stars:>=1000", "archived:false"} {
			if !strings.Contains(q, want) {
				t.Errorf("q = %q missing %q", q, want)
			}
		}
		fmt.Fprint(w, `{"items": [{"full_name": "octocat/hello-world", "stargazers_count": 5000}]}`)
	}))

	out, err := m.ExecuteTool(context.Background(), "discover_repository", map[string]any{
		"language": "go",
		"topics":   []any{"cli"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "octocat/hello-world") {
		t.Errorf("output missing repo:\n%s", out)
	}
}

func TestGetIssueDetails_WithComments(t *testing.T) {
	m, _, _, _ := testModule(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octocat/hello-world/issues/7":
			fmt.Fprint(w, `{"number": 7, "title": "Fix the widget", "state": "open", "body": "Broken."}`)
		case "/repos/octocat/hello-world/issues/7/comments":
			fmt.Fprint(w, `[{"user": {"login": "reviewer"}, "body": "I can reproduce this."}]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	out, err := m.ExecuteTool(context.Background(), "get_issue_details", map[string]any{
		"repo":             "octocat/hello-world",
		"number":           float64(7),
		"include_comments": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "I can reproduce this.") {
		t.Errorf("output missing comment:\n%s", out)
	}
}

func TestGetIssueDetails_BadNumber(t *testing.T) {
	m, _, _, requests := testModule(t, nil)
	_, err := m.ExecuteTool(context.Background(), "get_issue_details", map[string]any{
		"repo":   "octocat/hello-world",
		"number": float64(0),
	})
	if code := errCode(t, err); code != "VALIDATION_ERROR" {
		t.Errorf("code = %s", code)
	}
	if *requests != 0 {
		t.Errorf("%d requests made, want 0", *requests)
	}
}

func TestListRepoMetadata(t *testing.T) {
	m, _, _, _ := testModule(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/hello-world" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"full_name": "octocat/hello-world", "default_branch": "main", "language": "Go"}`)
	}))

	out, err := m.ExecuteTool(context.Background(), "list_repo_metadata", map[string]any{
		"repo": "octocat/hello-world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"default_branch": "main"`, "contribution_guides"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrepareClone(t *testing.T) {
	m, _, _, _ := testModule(t, nil)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "leftover.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := m.ExecuteTool(context.Background(), "prepare_clone", map[string]any{
		"target_path": dir,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"exists": true`, `"is_empty": false`, `"ready": false`, "leftover.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCloneRepo_ConfirmationRequired(t *testing.T) {
	m, cloner, _, requests := testModule(t, nil)

	for _, params := range []map[string]any{
		{"repo": "octocat/hello-world", "target_path": "/tmp/x"},
		{"repo": "octocat/hello-world", "target_path": "/tmp/x", "confirmed": false},
	} {
		_, err := m.ExecuteTool(context.Background(), "clone_repo", params)
		if code := errCode(t, err); code != "CONFIRMATION_REQUIRED" {
			t.Errorf("code = %s", code)
		}
	}
	if cloner.calls != 0 {
		t.Errorf("cloner called %d times without confirmation", cloner.calls)
	}
	if *requests != 0 {
		t.Errorf("%d network requests without confirmation", *requests)
	}
}

func TestCloneRepo_Confirmed(t *testing.T) {
	m, cloner, _, _ := testModule(t, nil)

	out, err := m.ExecuteTool(context.Background(), "clone_repo", map[string]any{
		"repo":         "octocat/hello-world",
		"target_path":  "/tmp/clone",
		"confirmed":    true,
		"shallow":      true,
		"clone_method": "ssh",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cloner.calls != 1 {
		t.Fatalf("cloner called %d times, want 1", cloner.calls)
	}
	if !cloner.lastReq.Shallow || cloner.lastReq.Method != "ssh" {
		t.Errorf("clone request = %+v", cloner.lastReq)
	}
	for _, want := range []string{`"current_branch": "main"`, "next_steps", "Repository cloned successfully!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCloneRepo_ClonerErrorPassedThrough(t *testing.T) {
	m, cloner, _, _ := testModule(t, nil)
	cloner.err = apperrors.New(apperrors.CodePathNotEmpty, "target directory is not empty")

	_, err := m.ExecuteTool(context.Background(), "clone_repo", map[string]any{
		"repo":        "octocat/hello-world",
		"target_path": "/tmp/full",
		"confirmed":   true,
	})
	if code := errCode(t, err); code != "PATH_NOT_EMPTY" {
		t.Errorf("code = %s", code)
	}
}

func TestPRAssistant(t *testing.T) {
	m, _, prober, requests := testModule(t, nil)
	prober.status = gitops.RepoStatus{
		IsGitRepo:             true,
		CurrentBranch:         "fix-widget",
		HasUncommittedChanges: true,
		StatusSummary:         " M widget.go",
	}

	out, err := m.ExecuteTool(context.Background(), "pr_assistant", map[string]any{
		"local_repo_path": "/tmp/clone",
		"head_branch":     "fix-widget",
		"pr_title":        "Fix the widget",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prober.calls != 1 {
		t.Errorf("prober called %d times, want 1", prober.calls)
	}
	if *requests != 0 {
		t.Errorf("%d network requests, want 0", *requests)
	}
	if strings.Contains(out, `"ok"`) {
		t.Error("pr_assistant should return markdown, not the JSON envelope")
	}
	for _, want := range []string{"# Pull Request Creation Guide", "fix-widget", "uncommitted"} {
		if !strings.Contains(out, strings.ToLower(want)) && !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCreatePullRequest_AuthRequired(t *testing.T) {
	m, _, _, requests := testModule(t, nil)

	_, err := m.ExecuteTool(context.Background(), "create_pull_request", map[string]any{
		"repo":  "octocat/hello-world",
		"head":  "me:fix-widget",
		"base":  "main",
		"title": "Fix the widget",
	})
	if code := errCode(t, err); code != "AUTH_REQUIRED" {
		t.Errorf("code = %s", code)
	}
	if *requests != 0 {
		t.Errorf("%d requests made without a token", *requests)
	}
}

func TestCreatePullRequest_Success(t *testing.T) {
	m, _, _, _ := testModule(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/octocat/hello-world/pulls" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ghp_test" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 42, "html_url": "https://github.com/octocat/hello-world/pull/42"}`)
	}))

	out, err := m.ExecuteTool(context.Background(), "create_pull_request", map[string]any{
		"repo":  "octocat/hello-world",
		"head":  "me:fix-widget",
		"base":  "main",
		"title": "Fix the widget",
		"token": "ghp_test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"pr_number": 42`, "pull/42"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCreatePullRequest_EmptyTitle(t *testing.T) {
	m, _, _, requests := testModule(t, nil)
	_, err := m.ExecuteTool(context.Background(), "create_pull_request", map[string]any{
		"repo":  "octocat/hello-world",
		"head":  "me:fix-widget",
		"base":  "main",
		"title": "   ",
		"token": "ghp_test",
	})
	if code := errCode(t, err); code != "VALIDATION_ERROR" {
		t.Errorf("code = %s", code)
	}
	if *requests != 0 {
		t.Errorf("%d requests made, want 0", *requests)
	}
}

func TestForkRepo_UsesConfiguredToken(t *testing.T) {
	m, _, _, _ := testModule(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/octocat/hello-world/forks" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ghp_configured" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"full_name": "me/hello-world", "clone_url": "https://github.com/me/hello-world.git", "ssh_url": "git@github.com:me/hello-world.git"}`)
	}))
	m.cfg.GitHub.Token = "ghp_configured"

	out, err := m.ExecuteTool(context.Background(), "fork_repo", map[string]any{
		"repo": "octocat/hello-world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"fork_full_name": "me/hello-world"`) {
		t.Errorf("output missing fork name:\n%s", out)
	}
}
