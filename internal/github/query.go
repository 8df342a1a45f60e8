package github

import (
	"fmt"
	"strings"

	apperrors "issueshepherd/server/internal/errors"
)

// Search modes for issue search.
const (
	ModeRepo   = "repo"
	ModeGlobal = "global"
)

// Search limits shared by all search tools.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 30
)

// SearchFilters is the structured input to the query builder.
type SearchFilters struct {
	Mode       string
	Repo       string
	Skills     []string
	Topics     []string
	Language   string
	Difficulty string
	Labels     []string
	State      string
	Sort       string
	Limit      int
}

// difficultyQualifiers maps each tier to its label qualifier group.
// Each tier produces exactly one group per query.
var difficultyQualifiers = map[string]string{
	"good-first-issue": `label:"good first issue"`,
	"easy":             `(label:"good first issue" OR label:easy OR label:beginner)`,
	"medium":           `(label:medium OR label:intermediate)`,
	"hard":             `(label:hard OR label:advanced OR label:expert)`,
}

// reservedQueryChars would change the meaning of a search expression if
// embedded in a user-supplied term.
const reservedQueryChars = ":\"\\"

// ValidateLimit rejects limits outside [1, MaxSearchLimit]. Clamping is
// deliberately avoided so callers always get the count they asked for.
func ValidateLimit(limit int) error {
	if limit < 1 || limit > MaxSearchLimit {
		return apperrors.Newf(apperrors.CodeValidation,
			"limit must be between 1 and %d, got %d", MaxSearchLimit, limit)
	}
	return nil
}

// BuildIssueQuery translates SearchFilters into a GitHub issue search
// expression. All specified facets are ANDed; pull requests are always
// excluded.
func BuildIssueQuery(f SearchFilters) (string, error) {
	if f.Mode != ModeRepo && f.Mode != ModeGlobal {
		return "", apperrors.Newf(apperrors.CodeValidation,
			"mode must be %q or %q, got %q", ModeRepo, ModeGlobal, f.Mode)
	}
	if f.Mode == ModeRepo {
		if f.Repo == "" {
			return "", apperrors.New(apperrors.CodeValidation,
				"repo is required when mode is \"repo\"")
		}
		if !strings.Contains(f.Repo, "/") {
			return "", apperrors.New(apperrors.CodeValidation,
				"repo must be in \"owner/name\" format")
		}
	}
	if f.Mode == ModeGlobal &&
		len(f.Skills) == 0 && len(f.Topics) == 0 && len(f.Labels) == 0 &&
		f.Language == "" && f.Difficulty == "" {
		return "", apperrors.New(apperrors.CodeInvalidQuery,
			"global search needs at least one of skills, topics, labels, language or difficulty").
			WithHint("add a filter, or use mode \"repo\" with a repo identifier")
	}

	for _, term := range gatherTerms(f) {
		if strings.ContainsAny(term, reservedQueryChars) {
			return "", apperrors.Newf(apperrors.CodeInvalidQuery,
				"term %q contains reserved query syntax characters", term)
		}
	}

	parts := []string{"is:issue"}

	if f.State != "" && f.State != "all" {
		parts = append(parts, "is:"+f.State)
	}
	if f.Mode == ModeRepo {
		parts = append(parts, "repo:"+f.Repo)
	}
	if f.Difficulty != "" {
		qualifier, ok := difficultyQualifiers[f.Difficulty]
		if !ok {
			return "", apperrors.Newf(apperrors.CodeValidation,
				"difficulty must be one of good-first-issue, easy, medium, hard; got %q", f.Difficulty)
		}
		parts = append(parts, qualifier)
	}
	for _, label := range f.Labels {
		parts = append(parts, fmt.Sprintf("label:%q", label))
	}
	if f.Language != "" {
		parts = append(parts, "language:"+f.Language)
	}
	for _, keyword := range append(append([]string{}, f.Skills...), f.Topics...) {
		parts = append(parts, quoteTerm(keyword))
	}

	return strings.Join(parts, " "), nil
}

// BuildDiscoveryQuery translates discovery filters into a GitHub repository
// search expression. Active, well-established repositories only.
func BuildDiscoveryQuery(language string, topics []string) (string, error) {
	if language == "" && len(topics) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidQuery,
			"repository discovery needs a language or at least one topic").
			WithHint("pass language and/or topics to narrow the search")
	}
	for _, t := range append([]string{language}, topics...) {
		if strings.ContainsAny(t, reservedQueryChars) {
			return "", apperrors.Newf(apperrors.CodeInvalidQuery,
				"term %q contains reserved query syntax characters", t)
		}
	}

	var parts []string
	if language != "" {
		parts = append(parts, "language:"+language)
	}
	for _, topic := range topics {
		parts = append(parts, "topic:"+topic)
	}
	parts = append(parts, "stars:>=1000", "archived:false")

	return strings.Join(parts, " "), nil
}

// gatherTerms collects every user-supplied free term for escaping checks.
func gatherTerms(f SearchFilters) []string {
	terms := make([]string, 0, len(f.Skills)+len(f.Topics)+len(f.Labels)+1)
	terms = append(terms, f.Skills...)
	terms = append(terms, f.Topics...)
	terms = append(terms, f.Labels...)
	if f.Language != "" {
		terms = append(terms, f.Language)
	}
	return terms
}

// quoteTerm wraps terms containing whitespace in double quotes.
func quoteTerm(term string) string {
	if strings.ContainsAny(term, " \t") {
		return fmt.Sprintf("%q", term)
	}
	return term
}

// ScoreReasons explains why an issue matched the search, for display
// alongside each result.
func ScoreReasons(issue IssueSearchResult, f SearchFilters) []string {
	var reasons []string

	labels := make(map[string]bool, len(issue.Labels))
	for _, l := range issue.Labels {
		labels[strings.ToLower(l)] = true
	}

	if f.Difficulty == "good-first-issue" && labels["good first issue"] {
		reasons = append(reasons, "Label match: good first issue")
	}
	for _, label := range f.Labels {
		if labels[strings.ToLower(label)] {
			reasons = append(reasons, "Label match: "+label)
		}
	}

	title := strings.ToLower(issue.Title)
	body := strings.ToLower(issue.Body)
	for _, skill := range f.Skills {
		s := strings.ToLower(skill)
		if strings.Contains(title, s) || strings.Contains(body, s) {
			reasons = append(reasons, "Keyword match: "+skill)
		}
	}
	for _, topic := range f.Topics {
		t := strings.ToLower(topic)
		if strings.Contains(title, t) || strings.Contains(body, t) {
			reasons = append(reasons, "Topic match: "+topic)
		}
	}

	if f.Language != "" {
		reasons = append(reasons, "Repository language filter: "+f.Language)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "General search match")
	}
	return reasons
}
