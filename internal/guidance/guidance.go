// Package guidance renders human-readable contribution instructions:
// the PR creation checklist, the fork workflow guide and post-clone
// next steps. Pure text rendering, no network access.
package guidance

import (
	"strings"
	"text/template"

	"issueshepherd/server/internal/gitops"
)

// ChecklistInput feeds the PR checklist template.
type ChecklistInput struct {
	LocalRepoPath string
	BaseBranch    string
	HeadBranch    string
	Title         string
	Body          string
	ForkFlow      bool
	Status        gitops.RepoStatus
}

var checklistTmpl = template.Must(template.New("checklist").Parse(`# Pull Request Creation Guide

Repository: {{.LocalRepoPath}}
Base branch: {{.BaseBranch}}
Your branch: {{.HeadBranch}}

{{if .Status.Error -}}
Warning: {{.Status.Error}}
{{- else -}}
Current branch: {{.Status.CurrentBranch}}
{{if .Status.HasUncommittedChanges}}Warning: you have uncommitted changes{{else}}Working tree is clean{{end}}
{{- end}}

## Step-by-Step Instructions

### 1. Verify you are on the correct branch
` + "```bash" + `
cd {{.LocalRepoPath}}
git branch --show-current
` + "```" + `
Expected output: {{.HeadBranch}}
{{if and .Status.CurrentBranch (ne .Status.CurrentBranch .HeadBranch)}}
You are not on the expected branch. Switch with:
` + "```bash" + `
git checkout {{.HeadBranch}}
` + "```" + `
{{end}}
### 2. Ensure all changes are committed
` + "```bash" + `
git status
` + "```" + `
{{if .Status.HasUncommittedChanges}}
You have uncommitted changes. Commit them:
` + "```bash" + `
git add .
git commit -m "Your commit message"
` + "```" + `
{{end}}
### 3. Run the project's tests

Check README or CONTRIBUTING.md for the test command and make sure it passes.

### 4. Push your branch
` + "```bash" + `
git push -u origin {{.HeadBranch}}
` + "```" + `

### 5. Create the Pull Request

**Option A: Via the web interface**

1. Open the repository page
2. Click 'Pull requests', then 'New pull request'
{{if .ForkFlow -}}
3. Set the base repository and branch: {{.BaseBranch}}
4. Set your fork and branch: {{.HeadBranch}}
{{- else -}}
3. Select base: {{.BaseBranch}}
4. Select compare: {{.HeadBranch}}
{{- end}}
5. Title: {{.Title}}
{{if .Body}}6. Description: {{.Body}}
{{end}}
**Option B: Via the gh CLI**
` + "```bash" + `
gh pr create --base {{.BaseBranch}} --head {{.HeadBranch}} --title "{{.Title}}" --body "{{.Body}}"
` + "```" + `

## Before You Submit

Review the repository's contribution documents if present:
- CONTRIBUTING.md
- CODE_OF_CONDUCT.md
- DEVELOPMENT.md
- DEVELOPERS.md
- .github/CONTRIBUTING.md

## Additional Tips

- Link the issue: mention 'Fixes #123' or 'Closes #123' in the PR description
- Keep PRs focused: one PR per issue or feature
- Write clear commit messages in the present tense
- Update documentation when behavior changes
{{if .ForkFlow}}
{{template "forkflow" .}}
{{- end}}`))

// Registered as an associated template so the checklist can include it
// when fork_flow is set.
var _ = template.Must(checklistTmpl.New("forkflow").Parse(`## Fork Workflow Reference

When contributing to repositories you cannot push to directly:

` + "```bash" + `
# One-time setup
git clone https://github.com/YOUR-USERNAME/REPO-NAME.git
cd REPO-NAME
git remote add upstream https://github.com/ORIGINAL-OWNER/REPO-NAME.git
git remote -v

# For each contribution
git checkout {{.BaseBranch}}
git fetch upstream
git merge upstream/{{.BaseBranch}}
git checkout -b feature/my-contribution
git add .
git commit -m "Description"
git push -u origin feature/my-contribution
` + "```" + `

Then open the PR with base {{.BaseBranch}} on the original repository and
head on your fork.`))

// PRChecklist renders the full step-by-step PR creation guide as markdown.
func PRChecklist(in ChecklistInput) string {
	var b strings.Builder
	if err := checklistTmpl.Execute(&b, in); err != nil {
		// Template and input shape are fixed at compile time.
		return "failed to render PR checklist: " + err.Error()
	}
	return b.String()
}
