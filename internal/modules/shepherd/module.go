// Package shepherd is the tool module behind the MCP surface: issue
// discovery, repository inspection, clone handling and PR assistance.
package shepherd

import (
	"context"
	"fmt"
	"strings"

	"issueshepherd/server/internal/config"
	apperrors "issueshepherd/server/internal/errors"
	"issueshepherd/server/internal/github"
	"issueshepherd/server/internal/gitops"
	"issueshepherd/server/internal/guidance"
	"issueshepherd/server/internal/modules"
)

const githubAPIVersion = "2022-11-28"

const defaultMaxComments = 10

// Module implements modules.Module. All dependencies are injected at
// startup; nothing reaches into ambient state.
type Module struct {
	cfg      *config.Config
	client   *github.Client
	cloner   gitops.Cloner
	prober   gitops.StatusProber
	handlers map[string]toolHandler
}

type toolHandler func(ctx context.Context, params map[string]any) (string, error)

// New wires the module with its remote client and git capabilities.
func New(cfg *config.Config, client *github.Client, cloner gitops.Cloner, prober gitops.StatusProber) *Module {
	m := &Module{cfg: cfg, client: client, cloner: cloner, prober: prober}
	m.handlers = map[string]toolHandler{
		"discover_repository": m.discoverRepository,
		"search_issues":       m.searchIssues,
		"get_issue_details":   m.getIssueDetails,
		"list_repo_metadata":  m.listRepoMetadata,
		"prepare_clone":       m.prepareClone,
		"clone_repo":          m.cloneRepo,
		"pr_assistant":        m.prAssistant,
		"create_pull_request": m.createPullRequest,
		"fork_repo":           m.forkRepo,
	}
	return m
}

func (m *Module) Name() string {
	return "shepherd"
}

func (m *Module) Description() string {
	return "GitHub issue discovery, repository cloning and pull request assistance"
}

func (m *Module) APIVersion() string {
	return githubAPIVersion
}

func (m *Module) Tools() []modules.Tool {
	return toolDefinitions
}

func (m *Module) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	handler, ok := m.handlers[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, params)
}

// =============================================================================
// Tool Definitions
// =============================================================================

var toolDefinitions = []modules.Tool{
	{
		Name:        "discover_repository",
		Description: "Discover active, well-established repositories to contribute to, filtered by language and topics. Only repositories with at least 1000 stars that are not archived are returned.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"language": {Type: "string", Description: "Primary programming language filter"},
				"topics":   {Type: "array", Description: "Repository topics, e.g. [\"cli\", \"networking\"]", Items: &modules.Property{Type: "string"}},
				"sort":     {Type: "string", Description: "Sort order", Enum: []string{"stars", "updated", "help-wanted-issues"}},
				"limit":    {Type: "integer", Description: "Maximum results (1-30, default 10)"},
			},
		},
	},
	{
		Name:        "search_issues",
		Description: "Search for GitHub issues to work on. Scope to a repository with repo, or set mode to \"global\" to search across GitHub with skills/topics/language filters. Supports difficulty tiers (good-first-issue, easy, medium, hard), label and state filters.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"mode":       {Type: "string", Description: "Search scope (default \"repo\")", Enum: []string{"repo", "global"}},
				"repo":       {Type: "string", Description: "Repository in \"owner/repo\" format; required unless mode is \"global\""},
				"skills":     {Type: "array", Description: "Skills or keywords, e.g. [\"python\", \"testing\"]", Items: &modules.Property{Type: "string"}},
				"topics":     {Type: "array", Description: "Topic keywords", Items: &modules.Property{Type: "string"}},
				"language":   {Type: "string", Description: "Programming language filter"},
				"difficulty": {Type: "string", Description: "Difficulty tier", Enum: []string{"good-first-issue", "easy", "medium", "hard"}},
				"labels":     {Type: "array", Description: "Additional label filters (ANDed)", Items: &modules.Property{Type: "string"}},
				"state":      {Type: "string", Description: "Issue state (default \"open\")", Enum: []string{"open", "closed", "all"}},
				"sort":       {Type: "string", Description: "Sort order", Enum: []string{"relevance", "created", "updated", "comments"}},
				"limit":      {Type: "integer", Description: "Maximum results (1-30, default 10)"},
			},
		},
	},
	{
		Name:        "get_issue_details",
		Description: "Get full details of a specific GitHub issue: title, body, labels, assignees, timestamps and optionally recent comments.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo":             {Type: "string", Description: "Repository in \"owner/repo\" format"},
				"number":           {Type: "integer", Description: "Issue number"},
				"include_comments": {Type: "boolean", Description: "Fetch recent comments (default false)"},
				"max_comments":     {Type: "integer", Description: "Maximum comments to include (default 10)"},
			},
			Required: []string{"repo", "number"},
		},
	},
	{
		Name:        "list_repo_metadata",
		Description: "Get repository metadata before cloning or contributing: default branch, language, license, statistics, clone URLs and candidate contribution-guide files.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo": {Type: "string", Description: "Repository in \"owner/repo\" format"},
			},
			Required: []string{"repo"},
		},
	},
	{
		Name:        "prepare_clone",
		Description: "Inspect a local path before cloning: existence, emptiness, write permission and whether it could be created. Never creates or modifies anything.",
		Annotations: modules.AnnotateLocalReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"target_path":   {Type: "string", Description: "Path to inspect"},
				"must_be_empty": {Type: "boolean", Description: "Whether the directory must be empty (default true)"},
			},
			Required: []string{"target_path"},
		},
	},
	{
		Name:        "clone_repo",
		Description: "Clone a GitHub repository to a local directory. Requires confirmed=true as an explicit safety checkpoint; without it the call returns CONFIRMATION_REQUIRED and touches nothing.",
		Annotations: modules.AnnotateSideEffect,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo":         {Type: "string", Description: "Repository in \"owner/repo\" format"},
				"target_path":  {Type: "string", Description: "Local path to clone into"},
				"confirmed":    {Type: "boolean", Description: "Must be true to perform the clone (default false)"},
				"clone_method": {Type: "string", Description: "Transport (default \"https\")", Enum: []string{"https", "ssh"}},
				"shallow":      {Type: "boolean", Description: "Shallow clone with --depth 1 (default false)"},
				"branch":       {Type: "string", Description: "Specific branch to check out"},
			},
			Required: []string{"repo", "target_path"},
		},
	},
	{
		Name:        "pr_assistant",
		Description: "Get a step-by-step markdown guide for creating a pull request from a local repository, including a live working-tree check. No credentials needed.",
		Annotations: modules.AnnotateLocalReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"local_repo_path": {Type: "string", Description: "Path to the local repository"},
				"base_branch":     {Type: "string", Description: "Base branch to merge into (default \"main\")"},
				"head_branch":     {Type: "string", Description: "Your branch with the changes"},
				"pr_title":        {Type: "string", Description: "Proposed PR title"},
				"pr_body":         {Type: "string", Description: "Proposed PR description"},
				"fork_flow":       {Type: "boolean", Description: "Whether the fork workflow is used (default true)"},
			},
			Required: []string{"local_repo_path", "head_branch", "pr_title"},
		},
	},
	{
		Name:        "create_pull_request",
		Description: "Create a pull request via the GitHub API. Requires a token (parameter or GITHUB_TOKEN).",
		Annotations: modules.AnnotateCreate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo":  {Type: "string", Description: "Repository in \"owner/repo\" format"},
				"head":  {Type: "string", Description: "Branch name, or \"username:branch\" for forks"},
				"base":  {Type: "string", Description: "Base branch to merge into"},
				"title": {Type: "string", Description: "PR title"},
				"body":  {Type: "string", Description: "PR description"},
				"draft": {Type: "boolean", Description: "Create as draft (default false)"},
				"token": {Type: "string", Description: "GitHub token (falls back to the configured credential)"},
			},
			Required: []string{"repo", "head", "base", "title"},
		},
	},
	{
		Name:        "fork_repo",
		Description: "Fork a GitHub repository to your account via the API. Requires a token (parameter or GITHUB_TOKEN).",
		Annotations: modules.AnnotateCreate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo":  {Type: "string", Description: "Repository in \"owner/repo\" format"},
				"token": {Type: "string", Description: "GitHub token (falls back to the configured credential)"},
			},
			Required: []string{"repo"},
		},
	},
}

// =============================================================================
// Search tools
// =============================================================================

func (m *Module) discoverRepository(ctx context.Context, params map[string]any) (string, error) {
	limit := modules.IntParam(params, "limit", github.DefaultSearchLimit)
	if err := github.ValidateLimit(limit); err != nil {
		return "", err
	}

	language := modules.StringParam(params, "language", "")
	topics := stringSliceParam(params, "topics")

	query, err := github.BuildDiscoveryQuery(language, topics)
	if err != nil {
		return "", err
	}

	repos, rl, err := m.client.SearchRepositories(ctx, query, modules.StringParam(params, "sort", ""), limit)
	if err != nil {
		return "", err
	}

	return apperrors.OKResponse(map[string]any{
		"results":     repos,
		"query":       query,
		"total_found": len(repos),
		"rate_limit":  rl,
	})
}

func (m *Module) searchIssues(ctx context.Context, params map[string]any) (string, error) {
	limit := modules.IntParam(params, "limit", github.DefaultSearchLimit)
	if err := github.ValidateLimit(limit); err != nil {
		return "", err
	}

	filters := github.SearchFilters{
		Mode:       modules.StringParam(params, "mode", github.ModeRepo),
		Repo:       modules.StringParam(params, "repo", ""),
		Skills:     stringSliceParam(params, "skills"),
		Topics:     stringSliceParam(params, "topics"),
		Language:   modules.StringParam(params, "language", ""),
		Difficulty: modules.StringParam(params, "difficulty", ""),
		Labels:     stringSliceParam(params, "labels"),
		State:      modules.StringParam(params, "state", "open"),
		Sort:       modules.StringParam(params, "sort", "relevance"),
		Limit:      limit,
	}

	query, err := github.BuildIssueQuery(filters)
	if err != nil {
		return "", err
	}

	results, rl, err := m.client.SearchIssues(ctx, query, filters.Sort, limit)
	if err != nil {
		return "", err
	}

	for i := range results {
		results[i].ScoreReasons = github.ScoreReasons(results[i], filters)
	}

	return apperrors.OKResponse(map[string]any{
		"results":     results,
		"query":       query,
		"total_found": len(results),
		"rate_limit":  rl,
	})
}

func (m *Module) getIssueDetails(ctx context.Context, params map[string]any) (string, error) {
	repo := modules.StringParam(params, "repo", "")
	if err := validateRepo(repo); err != nil {
		return "", err
	}
	number := modules.IntParam(params, "number", 0)
	if number <= 0 {
		return "", apperrors.New(apperrors.CodeValidation, "number must be greater than 0")
	}

	issue, rl, err := m.client.GetIssue(ctx, repo, number)
	if err != nil {
		return "", err
	}

	if modules.BoolParam(params, "include_comments", false) {
		max := modules.IntParam(params, "max_comments", defaultMaxComments)
		if max > 0 {
			issue.CommentList = m.client.GetIssueComments(ctx, repo, number, max)
		}
	}

	return apperrors.OKResponse(map[string]any{
		"issue":      issue,
		"rate_limit": rl,
	})
}

func (m *Module) listRepoMetadata(ctx context.Context, params map[string]any) (string, error) {
	repo := modules.StringParam(params, "repo", "")
	if err := validateRepo(repo); err != nil {
		return "", err
	}

	meta, rl, err := m.client.GetRepository(ctx, repo)
	if err != nil {
		return "", err
	}

	return apperrors.OKResponse(map[string]any{
		"repository": meta,
		"rate_limit": rl,
	})
}

// =============================================================================
// Local filesystem and clone tools
// =============================================================================

func (m *Module) prepareClone(ctx context.Context, params map[string]any) (string, error) {
	verdict, err := gitops.Validate(
		modules.StringParam(params, "target_path", ""),
		modules.BoolParam(params, "must_be_empty", true),
	)
	if err != nil {
		return "", err
	}
	return apperrors.OKResponse(map[string]any{"verdict": verdict})
}

func (m *Module) cloneRepo(ctx context.Context, params map[string]any) (string, error) {
	// The confirmation gate comes first: without it, nothing on disk or
	// on the network may be touched.
	if !modules.BoolParam(params, "confirmed", false) {
		return "", apperrors.New(apperrors.CodeConfirmationRequired,
			"cloning writes to the local filesystem and needs explicit confirmation").
			WithHint("re-run with confirmed=true after reviewing repo and target_path")
	}

	repo := modules.StringParam(params, "repo", "")
	if err := validateRepo(repo); err != nil {
		return "", err
	}

	req := gitops.CloneRequest{
		Repo:       repo,
		TargetPath: modules.StringParam(params, "target_path", ""),
		Method:     modules.StringParam(params, "clone_method", "https"),
		Shallow:    modules.BoolParam(params, "shallow", false),
		Branch:     modules.StringParam(params, "branch", ""),
	}

	// Clones may legitimately run for minutes; detach from the dispatch
	// deadline and let the cloner apply its own.
	result, err := m.cloner.Clone(context.WithoutCancel(ctx), req)
	if err != nil {
		return "", err
	}

	return apperrors.OKResponse(map[string]any{
		"local_repo_path":  result.Path,
		"remote_url_used":  result.RemoteURL,
		"current_branch":   result.Branch,
		"next_steps":       guidance.NextSteps(result.Path, repo, result.Branch),
	})
}

// prAssistant is the one tool that returns markdown text directly rather
// than the JSON envelope.
func (m *Module) prAssistant(ctx context.Context, params map[string]any) (string, error) {
	localPath := modules.StringParam(params, "local_repo_path", "")

	return guidance.PRChecklist(guidance.ChecklistInput{
		LocalRepoPath: localPath,
		BaseBranch:    modules.StringParam(params, "base_branch", "main"),
		HeadBranch:    modules.StringParam(params, "head_branch", ""),
		Title:         modules.StringParam(params, "pr_title", ""),
		Body:          modules.StringParam(params, "pr_body", ""),
		ForkFlow:      modules.BoolParam(params, "fork_flow", true),
		Status:        m.prober.Status(ctx, localPath),
	}), nil
}

// =============================================================================
// Write-capable tools
// =============================================================================

func (m *Module) createPullRequest(ctx context.Context, params map[string]any) (string, error) {
	repo := modules.StringParam(params, "repo", "")
	if err := validateRepo(repo); err != nil {
		return "", err
	}
	title := strings.TrimSpace(modules.StringParam(params, "title", ""))
	if title == "" {
		return "", apperrors.New(apperrors.CodeValidation, "title is required and cannot be empty")
	}
	token, err := m.resolveToken(params)
	if err != nil {
		return "", err
	}

	pr, _, err := m.client.CreatePullRequest(ctx, token, repo,
		modules.StringParam(params, "head", ""),
		modules.StringParam(params, "base", ""),
		title,
		modules.StringParam(params, "body", ""),
		modules.BoolParam(params, "draft", false),
	)
	if err != nil {
		return "", err
	}

	return apperrors.OKResponse(map[string]any{
		"pr_url":    pr.URL,
		"pr_number": pr.Number,
		"message":   fmt.Sprintf("Pull request #%d created successfully", pr.Number),
	})
}

func (m *Module) forkRepo(ctx context.Context, params map[string]any) (string, error) {
	repo := modules.StringParam(params, "repo", "")
	if err := validateRepo(repo); err != nil {
		return "", err
	}
	token, err := m.resolveToken(params)
	if err != nil {
		return "", err
	}

	fork, _, err := m.client.ForkRepository(ctx, token, repo)
	if err != nil {
		return "", err
	}

	return apperrors.OKResponse(map[string]any{
		"fork_full_name": fork.FullName,
		"clone_url":      fork.CloneURL,
		"ssh_url":        fork.SSHURL,
		"message":        fmt.Sprintf("Repository forked successfully to %s", fork.FullName),
	})
}

// resolveToken prefers a per-call token over the configured credential.
// Write-capable tools never run anonymously.
func (m *Module) resolveToken(params map[string]any) (string, error) {
	if token := modules.StringParam(params, "token", ""); token != "" {
		return token, nil
	}
	if m.cfg.GitHub.Token != "" {
		return m.cfg.GitHub.Token, nil
	}
	return "", apperrors.New(apperrors.CodeAuthRequired,
		"a GitHub token is required for this operation").
		WithHint("pass token, or set the " + m.cfg.GitHub.TokenEnv + " environment variable")
}

// =============================================================================
// Helpers
// =============================================================================

func validateRepo(repo string) error {
	if repo == "" || !strings.Contains(repo, "/") {
		return apperrors.New(apperrors.CodeValidation,
			"repo must be in \"owner/repo\" format")
	}
	return nil
}

func stringSliceParam(params map[string]any, key string) []string {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	return modules.ToStringSlice(raw)
}
