// Package github wraps the GitHub REST API: query construction, a
// rate-limit-aware HTTP client and response mapping into stable shapes.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"issueshepherd/server/internal/config"
	apperrors "issueshepherd/server/internal/errors"
)

const apiVersion = "2022-11-28"

// retryDelay is the fixed pause before the single retry of a failed
// idempotent request. Calls are user-triggered, so no exponential backoff.
const retryDelay = 500 * time.Millisecond

// Client talks to the GitHub REST API. The zero value is not usable;
// construct with NewClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a Client from configuration. The token may be empty,
// in which case requests go out unauthenticated at the lower rate limit.
func NewClient(cfg config.GitHubConfig) *Client {
	return &Client{
		baseURL:    cfg.APIEndpoint,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// Authenticated reports whether a credential is configured.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// SearchIssues runs an issue search query and maps the items.
func (c *Client) SearchIssues(ctx context.Context, query, sort string, limit int) ([]IssueSearchResult, RateLimitState, error) {
	params := url.Values{"q": []string{query}}
	params.Set("per_page", strconv.Itoa(limit))
	if sort != "" && sort != "relevance" {
		params.Set("sort", sort)
	}

	body, rl, err := c.get(ctx, "/search/issues", params)
	if err != nil {
		return nil, rl, err
	}

	var payload struct {
		Items []rawIssue `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, rl, apperrors.New(apperrors.CodeTransport, "unexpected search response shape")
	}

	items := payload.Items
	if len(items) > limit {
		items = items[:limit]
	}
	results := make([]IssueSearchResult, 0, len(items))
	for _, item := range items {
		results = append(results, mapSearchResult(item))
	}
	return results, rl, nil
}

// SearchRepositories runs a repository search query for discovery.
func (c *Client) SearchRepositories(ctx context.Context, query, sort string, limit int) ([]RepoSummary, RateLimitState, error) {
	params := url.Values{"q": []string{query}}
	params.Set("per_page", strconv.Itoa(limit))
	if sort != "" && sort != "relevance" {
		params.Set("sort", sort)
	}

	body, rl, err := c.get(ctx, "/search/repositories", params)
	if err != nil {
		return nil, rl, err
	}

	var payload struct {
		Items []rawRepo `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, rl, apperrors.New(apperrors.CodeTransport, "unexpected search response shape")
	}

	items := payload.Items
	if len(items) > limit {
		items = items[:limit]
	}
	repos := make([]RepoSummary, 0, len(items))
	for _, item := range items {
		repos = append(repos, mapRepoSummary(item))
	}
	return repos, rl, nil
}

// GetIssue fetches a single issue.
func (c *Client) GetIssue(ctx context.Context, repo string, number int) (IssueDetail, RateLimitState, error) {
	body, rl, err := c.get(ctx, fmt.Sprintf("/repos/%s/issues/%d", repo, number), nil)
	if err != nil {
		if e, ok := apperrors.As(err); ok && e.Code == apperrors.CodeNotFound {
			return IssueDetail{}, rl, apperrors.Newf(apperrors.CodeNotFound,
				"issue #%d not found in repository %s", number, repo)
		}
		return IssueDetail{}, rl, err
	}

	var raw rawIssue
	if err := json.Unmarshal(body, &raw); err != nil {
		return IssueDetail{}, rl, apperrors.New(apperrors.CodeTransport, "unexpected issue response shape")
	}
	return mapIssueDetail(raw), rl, nil
}

// GetIssueComments fetches recent comments for an issue. Best effort:
// any failure yields an empty list rather than an error, since comments
// are supplementary to the issue itself.
func (c *Client) GetIssueComments(ctx context.Context, repo string, number, max int) []Comment {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(max))
	params.Set("sort", "created")
	params.Set("direction", "desc")

	body, _, err := c.get(ctx, fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number), params)
	if err != nil {
		return []Comment{}
	}

	var raw []rawComment
	if err := json.Unmarshal(body, &raw); err != nil {
		return []Comment{}
	}
	if len(raw) > max {
		raw = raw[:max]
	}
	comments := make([]Comment, 0, len(raw))
	for _, r := range raw {
		comments = append(comments, mapComment(r))
	}
	return comments
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, repo string) (RepoMetadata, RateLimitState, error) {
	body, rl, err := c.get(ctx, "/repos/"+repo, nil)
	if err != nil {
		if e, ok := apperrors.As(err); ok && e.Code == apperrors.CodeNotFound {
			return RepoMetadata{}, rl, apperrors.Newf(apperrors.CodeNotFound,
				"repository %s not found", repo)
		}
		return RepoMetadata{}, rl, err
	}

	var raw rawRepo
	if err := json.Unmarshal(body, &raw); err != nil {
		return RepoMetadata{}, rl, apperrors.New(apperrors.CodeTransport, "unexpected repository response shape")
	}
	return mapRepoMetadata(raw), rl, nil
}

// CreatePullRequest opens a pull request. Requires a credential; never
// retried since the call is not idempotent.
func (c *Client) CreatePullRequest(ctx context.Context, token, repo, head, base, title, body string, draft bool) (PullRequest, RateLimitState, error) {
	payload := map[string]any{
		"title": title,
		"head":  head,
		"base":  base,
		"body":  body,
		"draft": draft,
	}
	respBody, rl, err := c.post(ctx, "/repos/"+repo+"/pulls", token, payload)
	if err != nil {
		return PullRequest{}, rl, err
	}

	var raw struct {
		HTMLURL string `json:"html_url"`
		Number  int    `json:"number"`
	}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return PullRequest{}, rl, apperrors.New(apperrors.CodeTransport, "unexpected pull request response shape")
	}
	return PullRequest{URL: raw.HTMLURL, Number: raw.Number}, rl, nil
}

// ForkRepository forks a repository into the token owner's account.
// Never retried.
func (c *Client) ForkRepository(ctx context.Context, token, repo string) (Fork, RateLimitState, error) {
	respBody, rl, err := c.post(ctx, "/repos/"+repo+"/forks", token, nil)
	if err != nil {
		return Fork{}, rl, err
	}

	var raw struct {
		FullName string `json:"full_name"`
		CloneURL string `json:"clone_url"`
		SSHURL   string `json:"ssh_url"`
	}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return Fork{}, rl, apperrors.New(apperrors.CodeTransport, "unexpected fork response shape")
	}
	return Fork{FullName: raw.FullName, CloneURL: raw.CloneURL, SSHURL: raw.SSHURL}, rl, nil
}

// =============================================================================
// Transport
// =============================================================================

// get issues a GET request. On a network failure the request is retried
// once after a fixed delay; GET is idempotent so this is safe.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, RateLimitState, error) {
	body, rl, err := c.do(ctx, http.MethodGet, path, params, c.token, nil)
	if err == nil {
		return body, rl, nil
	}
	if e, ok := apperrors.As(err); !ok || e.Code != apperrors.CodeTransport || !e.Retryable() {
		return nil, rl, err
	}

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return nil, rl, apperrors.New(apperrors.CodeTransport, "request cancelled")
	}
	return c.do(ctx, http.MethodGet, path, params, c.token, nil)
}

// post issues a POST request with the given token. Never retried.
func (c *Client) post(ctx context.Context, path, token string, payload any) ([]byte, RateLimitState, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, RateLimitState{}, errors.Wrap(err, "marshal request body")
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, http.MethodPost, path, nil, token, body)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, token string, body io.Reader) ([]byte, RateLimitState, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, RateLimitState{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, RateLimitState{}, apperrors.Newf(apperrors.CodeTransport,
			"network error while contacting GitHub: %v", err).
			WithDetail("retryable", true)
	}
	defer resp.Body.Close()

	rl := parseRateLimit(resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rl, apperrors.New(apperrors.CodeTransport, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, rl, mapStatus(resp.StatusCode, respBody, rl)
	}
	return respBody, rl, nil
}

// parseRateLimit reads the quota headers present on every GitHub response.
func parseRateLimit(resp *http.Response) RateLimitState {
	rl := RateLimitState{Remaining: -1}
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rl.Remaining = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rl.Reset = n
		}
	}
	return rl
}

// mapStatus translates a non-2xx response into the error taxonomy.
func mapStatus(status int, body []byte, rl RateLimitState) *apperrors.Error {
	msg := upstreamMessage(body)

	switch {
	case (status == http.StatusForbidden || status == http.StatusTooManyRequests) && rl.Remaining == 0:
		return apperrors.New(apperrors.CodeRateLimitExceeded,
			"GitHub API rate limit exceeded").
			WithHint(fmt.Sprintf("rate limit resets at %s; set GITHUB_TOKEN for higher limits",
				rl.ResetTime().Format(time.RFC3339))).
			WithDetail("reset", rl.Reset).
			WithDetail("remaining", rl.Remaining)
	case status == http.StatusUnauthorized:
		return apperrors.New(apperrors.CodeAuthRequired,
			"GitHub rejected the credential").
			WithHint("check that the configured token is valid and not expired")
	case status == http.StatusForbidden:
		return apperrors.Newf(apperrors.CodePermissionDenied,
			"access forbidden: %s", defaultString(msg, "insufficient permissions")).
			WithDetail("status_code", status)
	case status == http.StatusNotFound:
		return apperrors.New(apperrors.CodeNotFound, "resource not found")
	case status == http.StatusUnprocessableEntity:
		return apperrors.Newf(apperrors.CodeValidation,
			"GitHub rejected the request: %s", defaultString(msg, "validation failed")).
			WithDetail("status_code", status)
	default:
		return apperrors.Newf(apperrors.CodeTransport,
			"GitHub API request failed (status %d): %s", status, defaultString(msg, "unknown error")).
			WithDetail("status_code", status)
	}
}

// upstreamMessage pulls the "message" field out of a GitHub error body
// without committing to the rest of its shape.
func upstreamMessage(body []byte) string {
	var msg string
	d := jx.DecodeBytes(body)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if key == "message" {
			s, err := d.Str()
			if err != nil {
				return err
			}
			msg = s
			return nil
		}
		return d.Skip()
	})
	return msg
}
