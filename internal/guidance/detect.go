package guidance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectInfo summarizes what kind of project a cloned tree looks like
// and how to get it running.
type ProjectInfo struct {
	Types      []string `json:"project_types"`
	SetupHints []string `json:"setup_hints"`
}

type marker struct {
	file        string
	projectType string
	hints       []string
}

// Ordered detection table. Within a group the first marker wins.
var pythonMarkers = []marker{
	{"pyproject.toml", "Python (pyproject.toml)", []string{"Install dependencies: pip install -e ."}},
	{"requirements.txt", "Python (requirements.txt)", []string{"Install dependencies: pip install -r requirements.txt"}},
	{"setup.py", "Python (setup.py)", []string{"Install dependencies: pip install -e ."}},
	{"Pipfile", "Python (Pipenv)", []string{"Install dependencies: pipenv install"}},
	{"poetry.lock", "Python (Poetry)", []string{"Install dependencies: poetry install"}},
}

var buildMarkers = []marker{
	{"CMakeLists.txt", "C/C++ (CMake)", []string{"Build: mkdir build && cd build && cmake .. && make"}},
	{"Makefile", "C/C++ (Makefile)", []string{"Build: make"}},
}

var javaMarkers = []marker{
	{"pom.xml", "Java (Maven)", []string{"Build: mvn clean install"}},
	{"build.gradle", "Java (Gradle)", []string{"Build: ./gradlew build"}},
	{"build.gradle.kts", "Java (Gradle)", []string{"Build: ./gradlew build"}},
}

// DetectProject inspects well-known marker files at the root of a cloned
// repository and returns setup hints per detected ecosystem.
func DetectProject(root string) ProjectInfo {
	var info ProjectInfo

	has := func(name string) bool {
		_, err := os.Stat(filepath.Join(root, name))
		return err == nil
	}
	firstOf := func(markers []marker) {
		for _, m := range markers {
			if has(m.file) {
				info.Types = append(info.Types, m.projectType)
				info.SetupHints = append(info.SetupHints, m.hints...)
				return
			}
		}
	}

	firstOf(pythonMarkers)

	if has("package.json") {
		info.Types = append(info.Types, "Node.js")
		switch {
		case has("yarn.lock"):
			info.SetupHints = append(info.SetupHints, "Install dependencies: yarn install")
		case has("pnpm-lock.yaml"):
			info.SetupHints = append(info.SetupHints, "Install dependencies: pnpm install")
		default:
			info.SetupHints = append(info.SetupHints, "Install dependencies: npm install")
		}
	}

	firstOf(buildMarkers)

	if has("Cargo.toml") {
		info.Types = append(info.Types, "Rust")
		info.SetupHints = append(info.SetupHints, "Build: cargo build", "Run tests: cargo test")
	}
	if has("go.mod") {
		info.Types = append(info.Types, "Go")
		info.SetupHints = append(info.SetupHints, "Install dependencies: go mod download", "Build: go build ./...")
	}

	firstOf(javaMarkers)

	if has("Gemfile") {
		info.Types = append(info.Types, "Ruby")
		info.SetupHints = append(info.SetupHints, "Install dependencies: bundle install")
	}

	if has("Dockerfile") {
		info.SetupHints = append(info.SetupHints, "Docker support detected. Build: docker build -t <image-name> .")
	}
	if has("docker-compose.yml") || has("docker-compose.yaml") {
		info.SetupHints = append(info.SetupHints, "Docker Compose support detected. Run: docker-compose up")
	}

	if has("README.md") || has("README") {
		info.SetupHints = append([]string{"Read README for setup instructions"}, info.SetupHints...)
	}
	if has("CONTRIBUTING.md") {
		info.SetupHints = append(info.SetupHints, "Read CONTRIBUTING.md for contribution guidelines")
	}
	for _, dir := range []string{"test", "tests", "__tests__", "spec"} {
		if has(dir) {
			info.SetupHints = append(info.SetupHints, "Run tests (check README for test commands)")
			break
		}
	}

	if len(info.Types) == 0 {
		info.Types = []string{"Unknown"}
	}
	if len(info.SetupHints) == 0 {
		info.SetupHints = []string{"Check README for setup instructions"}
	}
	return info
}

// NextSteps renders the post-clone summary shown to the caller.
func NextSteps(root, repo, branch string) string {
	info := DetectProject(root)

	var b strings.Builder
	b.WriteString("Repository cloned successfully!\n\n")
	fmt.Fprintf(&b, "Repository: %s\n", repo)
	fmt.Fprintf(&b, "Local path: %s\n", root)
	fmt.Fprintf(&b, "Current branch: %s\n\n", branch)
	fmt.Fprintf(&b, "Project type(s): %s\n\n", strings.Join(info.Types, ", "))
	b.WriteString("Next steps:\n")
	for i, hint := range info.SetupHints {
		fmt.Fprintf(&b, "%d. %s\n", i+1, hint)
	}
	return b.String()
}
