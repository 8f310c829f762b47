// Package sanitize – patterns.go holds the secret pattern tables.
// The tables are versioned static configuration: read-only at runtime,
// enumerable by tests.
package sanitize

import "regexp"

// keyValuePattern matches KEY=value pairs whose key name indicates a
// secret. The key is kept, the value replaced.
var keyValuePattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*(?i:key|token|secret|passwd|password|credential|auth)[A-Za-z0-9_]*)\s*=\s*("[^"]*"|'[^']*'|\S+)`)

// envLinePattern matches shell-style VAR=value lines used by the
// structured env-dump detector.
var envLinePattern = regexp.MustCompile(`(?m)^[A-Z][A-Z0-9_]*=\S`)

// uppercaseKeyPattern matches environment-style key names.
var uppercaseKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// base64RunPattern matches long base64-looking runs worth decoding.
var base64RunPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)

// tokenPattern pairs a provider-specific token shape with its name.
type tokenPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// tokenPatterns are bare token shapes that get partially masked
// (prefix preserved) to aid debugging without revealing the secret.
var tokenPatterns = []tokenPattern{
	{"openai-key", regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`)},
	{"anthropic-key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}\b`)},
	{"github-token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"slack-token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"aws-access-key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"telegram-bot-token", regexp.MustCompile(`\b\d{8,10}:[A-Za-z0-9_-]{35}\b`)},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{5,}\b`)},
	{"bearer-header", regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._~+/=-]{16,}`)},
	{"basic-auth-header", regexp.MustCompile(`(?i)\bBasic\s+[A-Za-z0-9+/=]{16,}`)},
	{"private-key-block", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`)},
	{"internal-addr", regexp.MustCompile(`\b(?:10|127|192\.168|172\.(?:1[6-9]|2[0-9]|3[01]))(?:\.\d{1,3}){2}:\d{2,5}\b`)},
}

// sensitiveKeyIndicators are substrings that make an uppercase key
// name sensitive, for the structured env-dump detector.
var sensitiveKeyIndicators = []string{
	"TOKEN", "SECRET", "KEY", "PASSWORD", "PASSWD", "CREDENTIAL", "AUTH",
}

// decodedSecretIndicators are substrings that, found in decoded base64
// text, identify a secret dump.
var decodedSecretIndicators = []string{
	"TOKEN", "SECRET", "API_KEY", "APIKEY", "PASSWORD", "CREDENTIAL",
	"PRIVATE KEY", "TELEGRAM", "ANTHROPIC", "OPENAI", "AWS_",
	"BEARER", "AUTHORIZATION",
}
