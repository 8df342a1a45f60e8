package github

import (
	"strings"
	"time"
)

// RateLimitState is read from the rate-limit response headers of the most
// recent call. Advisory only, never persisted.
type RateLimitState struct {
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// ResetTime returns the reset timestamp as a time.Time.
func (r RateLimitState) ResetTime() time.Time {
	return time.Unix(r.Reset, 0).UTC()
}

// IssueSearchResult is one entry of a search_issues response.
type IssueSearchResult struct {
	Repo         string   `json:"repo"`
	Number       int      `json:"number"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Labels       []string `json:"labels"`
	Comments     int      `json:"comments"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
	Snippet      string   `json:"snippet"`
	State        string   `json:"state"`
	Body         string   `json:"-"`
	ScoreReasons []string `json:"score_reason,omitempty"`
}

// IssueDetail is the full shape returned by get_issue_details.
type IssueDetail struct {
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	URL           string    `json:"url"`
	State         string    `json:"state"`
	Labels        []string  `json:"labels"`
	Assignees     []string  `json:"assignees"`
	Milestone     string    `json:"milestone,omitempty"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     string    `json:"updated_at"`
	ClosedAt      string    `json:"closed_at,omitempty"`
	Author        string    `json:"author"`
	CommentsCount int       `json:"comments_count"`
	CommentList   []Comment `json:"comments,omitempty"`
}

// Comment is a single issue comment.
type Comment struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	URL       string `json:"url"`
}

// RepoMetadata is the shape returned by list_repo_metadata.
type RepoMetadata struct {
	Name               string   `json:"name"`
	FullName           string   `json:"full_name"`
	Description        string   `json:"description"`
	DefaultBranch      string   `json:"default_branch"`
	Language           string   `json:"language"`
	License            string   `json:"license,omitempty"`
	Stars              int      `json:"stars"`
	Forks              int      `json:"forks"`
	OpenIssues         int      `json:"open_issues"`
	CloneURL           string   `json:"clone_url"`
	SSHURL             string   `json:"ssh_url"`
	Topics             []string `json:"topics"`
	Homepage           string   `json:"homepage"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	ContributionGuides []string `json:"contribution_guides"`
}

// RepoSummary is one entry of a discover_repository response.
type RepoSummary struct {
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Language    string   `json:"language"`
	Stars       int      `json:"stars"`
	OpenIssues  int      `json:"open_issues"`
	Topics      []string `json:"topics"`
}

// PullRequest is the result of create_pull_request.
type PullRequest struct {
	URL    string `json:"pr_url"`
	Number int    `json:"pr_number"`
}

// Fork is the result of fork_repo.
type Fork struct {
	FullName string `json:"fork_full_name"`
	CloneURL string `json:"clone_url"`
	SSHURL   string `json:"ssh_url"`
}

// =============================================================================
// Wire shapes and mapping
// =============================================================================

// Upstream JSON is decoded into these intermediate shapes so that missing
// optional fields fall back to defined defaults instead of breaking the
// output schema.

type rawLabel struct {
	Name string `json:"name"`
}

type rawUser struct {
	Login string `json:"login"`
}

type rawIssue struct {
	RepositoryURL string     `json:"repository_url"`
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	HTMLURL       string     `json:"html_url"`
	State         string     `json:"state"`
	Labels        []rawLabel `json:"labels"`
	Assignees     []rawUser  `json:"assignees"`
	Milestone     *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	User      rawUser `json:"user"`
	Comments  int     `json:"comments"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	ClosedAt  string  `json:"closed_at"`
}

type rawComment struct {
	ID        int64   `json:"id"`
	User      rawUser `json:"user"`
	Body      string  `json:"body"`
	HTMLURL   string  `json:"html_url"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type rawRepo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language"`
	License       *struct {
		Name string `json:"name"`
	} `json:"license"`
	Stars      int      `json:"stargazers_count"`
	Forks      int      `json:"forks_count"`
	OpenIssues int      `json:"open_issues_count"`
	CloneURL   string   `json:"clone_url"`
	SSHURL     string   `json:"ssh_url"`
	HTMLURL    string   `json:"html_url"`
	Topics     []string `json:"topics"`
	Homepage   string   `json:"homepage"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

const snippetMaxLength = 200

// contributionGuidePaths are the conventional contribution-guide locations
// suggested on every list_repo_metadata response. Candidates only, never
// verified against the repository tree.
var contributionGuidePaths = []string{
	"CONTRIBUTING.md",
	"CODE_OF_CONDUCT.md",
	"DEVELOPMENT.md",
	"DEVELOPERS.md",
	".github/CONTRIBUTING.md",
}

func mapSearchResult(r rawIssue) IssueSearchResult {
	return IssueSearchResult{
		Repo:      repoFromURL(r.RepositoryURL),
		Number:    r.Number,
		Title:     r.Title,
		URL:       r.HTMLURL,
		Labels:    labelNames(r.Labels),
		Comments:  r.Comments,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Snippet:   snippet(r.Body),
		State:     defaultString(r.State, "open"),
		Body:      r.Body,
	}
}

func mapIssueDetail(r rawIssue) IssueDetail {
	d := IssueDetail{
		Number:        r.Number,
		Title:         r.Title,
		Body:          r.Body,
		URL:           r.HTMLURL,
		State:         defaultString(r.State, "open"),
		Labels:        labelNames(r.Labels),
		Assignees:     make([]string, 0, len(r.Assignees)),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		ClosedAt:      r.ClosedAt,
		Author:        r.User.Login,
		CommentsCount: r.Comments,
	}
	for _, a := range r.Assignees {
		d.Assignees = append(d.Assignees, a.Login)
	}
	if r.Milestone != nil {
		d.Milestone = r.Milestone.Title
	}
	return d
}

func mapComment(r rawComment) Comment {
	return Comment{
		ID:        r.ID,
		Author:    r.User.Login,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		URL:       r.HTMLURL,
	}
}

func mapRepoMetadata(r rawRepo) RepoMetadata {
	branch := defaultString(r.DefaultBranch, "main")
	m := RepoMetadata{
		Name:               r.Name,
		FullName:           r.FullName,
		Description:        r.Description,
		DefaultBranch:      branch,
		Language:           r.Language,
		Stars:              r.Stars,
		Forks:              r.Forks,
		OpenIssues:         r.OpenIssues,
		CloneURL:           r.CloneURL,
		SSHURL:             r.SSHURL,
		Topics:             emptyIfNil(r.Topics),
		Homepage:           r.Homepage,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		ContributionGuides: make([]string, 0, len(contributionGuidePaths)),
	}
	if r.License != nil {
		m.License = r.License.Name
	}
	for _, path := range contributionGuidePaths {
		m.ContributionGuides = append(m.ContributionGuides,
			"https://github.com/"+r.FullName+"/blob/"+branch+"/"+path)
	}
	return m
}

func mapRepoSummary(r rawRepo) RepoSummary {
	return RepoSummary{
		FullName:    r.FullName,
		Description: r.Description,
		URL:         r.HTMLURL,
		Language:    r.Language,
		Stars:       r.Stars,
		OpenIssues:  r.OpenIssues,
		Topics:      emptyIfNil(r.Topics),
	}
}

// repoFromURL extracts "owner/name" from an API repository URL.
func repoFromURL(u string) string {
	if i := strings.Index(u, "/repos/"); i >= 0 {
		return u[i+len("/repos/"):]
	}
	return ""
}

func labelNames(labels []rawLabel) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return "(No description)"
	}
	if len(body) <= snippetMaxLength {
		return body
	}
	return body[:snippetMaxLength] + "..."
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
