package focus

var sourcePatterns = []string{
	"*.go", "*.py", "*.js", "*.jsx", "*.ts", "*.tsx", "*.rb", "*.java",
	"*.kt", "*.rs", "*.php", "*.cs", "*.swift", "*.c", "*.h", "*.cpp",
}

func withSource(extra ...string) []string {
	out := append([]string(nil), sourcePatterns...)
	return append(out, extra...)
}

var securityArea = Area{
	name:        "security",
	description: "Secrets, injection, auth flaws and unsafe configuration",
	patterns: withSource(
		"*.env.example", "*Dockerfile*", "*docker-compose*.yml", "*.tf",
		"*.yml", "*.yaml", "*.toml", "*.ini", "*.conf",
	),
	prompt: `You are a senior application security engineer reviewing a codebase.

Look for:
- Hardcoded secrets, tokens, passwords or private keys
- Injection: SQL, shell, template, path traversal, SSRF
- Broken authentication or authorization checks
- Unsafe deserialization and unvalidated input crossing trust boundaries
- Insecure defaults in configuration, containers and infrastructure code
- Weak or misused cryptography

Report only issues that are concrete and exploitable or clearly dangerous. Use "high" for
issues an attacker could use today, "medium" for weaknesses that need another flaw to
matter, and "low" for hardening opportunities.`,
}

var docsArea = Area{
	name:        "docs",
	description: "Documentation drift, missing docs and misleading comments",
	patterns:    withSource("*.md", "*.rst", "*.txt"),
	prompt: `You are a technical writer reviewing documentation against the code it describes.

Look for:
- README or guides describing commands, flags or APIs that no longer exist
- Public APIs without any documentation
- Comments that contradict the code next to them
- Missing setup, configuration or troubleshooting steps a new contributor would need

Use "high" when documentation is wrong in a way that breaks users, "medium" for
important gaps, and "low" for polish.`,
}

var patternsArea = Area{
	name:        "patterns",
	description: "Architecture drift, inconsistent conventions and duplicated logic",
	patterns:    withSource(),
	prompt: `You are a staff engineer reviewing a codebase for consistency of design.

Look for:
- The same problem solved in different ways across the codebase
- Layering violations, such as domain code importing infrastructure
- Duplicated logic that has already diverged
- Error handling that ignores or swallows failures inconsistently

Report only patterns with a concrete example location. Use "high" for drift that is
already causing bugs, "medium" for drift that will, and "low" for style.`,
}

var testingArea = Area{
	name:        "testing",
	description: "Untested critical paths, weak assertions and flaky tests",
	patterns:    withSource("*_test.go", "*test*.py", "*.spec.ts", "*.test.ts", "*.test.js"),
	prompt: `You are a test engineer reviewing a codebase and its tests.

Look for:
- Critical code paths with no tests at all
- Tests that assert nothing meaningful or only exercise mocks
- Tests that depend on time, ordering, network or shared state and will flake
- Error branches and edge cases that are never exercised

Use "high" for untested code whose failure would lose data or money, "medium" for
untested business logic, and "low" for test quality issues.`,
}

var hygieneArea = Area{
	name:        "hygiene",
	description: "Dead code, stale TODOs, leftover debug output and clutter",
	patterns:    withSource("*.sh", "Makefile", "*.mk"),
	prompt: `You are reviewing a codebase for hygiene.

Look for:
- Dead or unreachable code, unused functions and files
- Leftover debug output and commented-out blocks
- TODO or FIXME notes that describe work long since done or abandoned
- Generated or temporary files committed by mistake

Severity is usually "low"; use "medium" when clutter actively misleads readers.`,
}

var dependenciesArea = Area{
	name:        "dependencies",
	description: "Outdated, unpinned, vulnerable or unused dependencies",
	patterns: []string{
		"go.mod", "*requirements*.txt", "pyproject.toml", "setup.py", "setup.cfg",
		"package.json", "Gemfile", "Cargo.toml", "pom.xml", "build.gradle*", "composer.json",
	},
	prompt: `You are reviewing a project's dependency manifests.

Look for:
- Dependencies with well known vulnerabilities in the pinned version range
- Unpinned or overly broad version ranges for production dependencies
- Abandoned packages and duplicated libraries serving the same purpose
- Development dependencies leaking into production builds

Use "high" for known vulnerable versions, "medium" for supply chain risk, and "low" for
tidiness.`,
}

var performanceArea = Area{
	name:        "performance",
	description: "Hot-path inefficiencies, N+1 queries and unbounded work",
	patterns:    withSource("*.sql"),
	prompt: `You are a performance engineer reviewing a codebase.

Look for:
- N+1 queries and queries without the indexes they need
- Unbounded loops, allocations or result sets on request paths
- Blocking I/O inside hot loops and missing timeouts on remote calls
- Repeated expensive computation that could be cached

Use "high" for issues that will cause outages under normal load, "medium" for clear
waste on hot paths, and "low" for micro-optimisations.`,
}
