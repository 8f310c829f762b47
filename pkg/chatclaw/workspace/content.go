// Package workspace – content.go implements the sensitive-content
// classifier applied to file bodies being written or edited and to
// script files a shell command would execute.
//
// The rules are heuristic regex over source text, so false positives
// are accepted as the safe failure direction. A matched rule is never
// silently allowed through.
package workspace

import (
	"regexp"
	"strings"
)

// ContentRule defines a pattern family that makes content dangerous.
type ContentRule struct {
	Name    string
	Pattern *regexp.Regexp
	Message string
}

// ContentCheck is the result of a content classification.
type ContentCheck struct {
	Dangerous bool
	Rule      string
	Reason    string
}

// contentRules cover direct secret access, exfiltration, and reverse
// shells across the ecosystems the agent can write code in.
var contentRules = []ContentRule{
	{
		Name:    "env-access",
		Pattern: regexp.MustCompile(`(?i)(process\.env\b|os\.environ\b|os\.getenv\s*\(|System\.getenv\s*\(|ENV\[|\bgetenv\s*\()`),
		Message: "environment variable access is not allowed in workspace code",
	},
	{
		Name:    "dotenv-load",
		Pattern: regexp.MustCompile(`(?i)(require\s*\(\s*['"]dotenv['"]\s*\)|from\s+dotenv\s+import|load_dotenv\s*\(|dotenv\.config\s*\()`),
		Message: "loading environment files is not allowed in workspace code",
	},
	{
		Name:    "outbound-post",
		Pattern: regexp.MustCompile(`(?i)(requests\.post\s*\(|axios\.post\s*\(|curl\s+[^\n]*-X\s*POST|fetch\s*\([^)]*method\s*:\s*['"]POST|http\.post\s*\()`),
		Message: "outbound POST call detected",
	},
	{
		Name:    "reverse-shell",
		Pattern: regexp.MustCompile(`(?i)(/dev/tcp/|nc\s+-[a-z]*e\b|bash\s+-i\s+>&|socket\.socket\s*\([^)]*\)[^\n]*connect|pty\.spawn\s*\()`),
		Message: "reverse shell idiom detected",
	},
	{
		Name:    "etc-read",
		Pattern: regexp.MustCompile(`(?i)(/etc/(passwd|shadow|hosts|sudoers)|open\s*\(\s*['"]/etc/|readFile[^\n]*['"]/etc/)`),
		Message: "reading system configuration files is not allowed",
	},
	{
		Name:    "env-file-read",
		Pattern: regexp.MustCompile(`(?i)(open\s*\(\s*['"][^'"]*\.env['"]|readFile[^\n]*\.env['"]|read_text\s*\(\s*\)[^\n]*\.env)`),
		Message: "reading environment files is not allowed",
	},
}

// Compound exfiltration-server heuristic: content that starts a server,
// reads files, and takes the path from a request parameter is the
// signature of "exfiltrate arbitrary files via a tiny web server".
// All three must co-occur; any one alone is legitimate code.
var (
	serverStartPattern = regexp.MustCompile(`(?i)(http\.server|BaseHTTPRequestHandler|socketserver|createServer\s*\(|app\.listen\s*\(|\.listen\s*\(\s*\d|express\s*\(\s*\)|Flask\s*\(|ListenAndServe)`)
	fileReadPattern    = regexp.MustCompile(`(?i)(readFile(Sync)?\s*\(|fs\.read|open\s*\(|read_text\s*\(|ReadFile\s*\(|sendFile\s*\(|createReadStream\s*\()`)
	requestPathPattern = regexp.MustCompile(`(?i)(req\.(query|params|body)\b|request\.(args|form|GET|POST|values)\b|searchParams\b|url\.parse\s*\(|query\.get\s*\(|self\.path\b)`)
)

// ClassifyContent scans text for dangerous-code patterns. The first
// matching rule wins; the compound heuristic runs last over the whole
// body.
func ClassifyContent(text string) ContentCheck {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		for _, rule := range contentRules {
			if rule.Pattern.MatchString(line) {
				return ContentCheck{
					Dangerous: true,
					Rule:      rule.Name,
					Reason:    rule.Message,
				}
			}
		}
	}

	if serverStartPattern.MatchString(text) &&
		fileReadPattern.MatchString(text) &&
		requestPathPattern.MatchString(text) {
		return ContentCheck{
			Dangerous: true,
			Rule:      "exfiltration-server",
			Reason:    "server that reads files from a request-controlled path",
		}
	}

	return ContentCheck{Dangerous: false}
}
