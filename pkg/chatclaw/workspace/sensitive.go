// Package workspace – sensitive.go implements the sensitive file name
// and path rules. A path matching any rule is unreadable, unwritable,
// and unsearchable regardless of containment.
package workspace

import (
	"path/filepath"
	"regexp"
)

// sensitiveFileNames are exact basenames that always identify secret
// material.
var sensitiveFileNames = map[string]string{
	".env":             "environment file",
	".envrc":           "environment file",
	".npmrc":           "registry credentials",
	".netrc":           "stored credentials",
	".pgpass":          "database credentials",
	"credentials":      "credentials file",
	"credentials.json": "credentials file",
	"credentials.yaml": "credentials file",
	"credentials.yml":  "credentials file",
	"secrets.json":     "secrets file",
	"secrets.yaml":     "secrets file",
	"secrets.yml":      "secrets file",
	"id_rsa":           "SSH private key",
	"id_dsa":           "SSH private key",
	"id_ecdsa":         "SSH private key",
	"id_ed25519":       "SSH private key",
	"known_hosts":      "SSH host data",
	"authorized_keys":  "SSH access data",
}

// sensitivePathRule pairs a compiled path pattern with its reason.
type sensitivePathRule struct {
	Pattern *regexp.Regexp
	Reason  string
}

// sensitivePathRules match path shapes that carry secret material.
var sensitivePathRules = []sensitivePathRule{
	{regexp.MustCompile(`(?i)(^|/)\.env(\.[A-Za-z0-9._-]+)?$`), "environment file"},
	{regexp.MustCompile(`(?i)(^|/)credentials\.[A-Za-z0-9]+$`), "credentials file"},
	{regexp.MustCompile(`(?i)\.pem$`), "private key material"},
	{regexp.MustCompile(`(?i)\.key$`), "private key material"},
	{regexp.MustCompile(`(?i)\.p12$`), "private key material"},
	{regexp.MustCompile(`(?i)\.pfx$`), "private key material"},
	{regexp.MustCompile(`(?i)\.keystore$`), "private key material"},
	{regexp.MustCompile(`(^|/)\.ssh(/|$)`), "SSH directory"},
	{regexp.MustCompile(`(^|/)\.gnupg(/|$)`), "GPG directory"},
	{regexp.MustCompile(`(^|/)\.aws(/|$)`), "cloud credentials"},
	{regexp.MustCompile(`(^|/)\.kube(/|$)`), "cluster credentials"},
	{regexp.MustCompile(`^/run/secrets(/|$)`), "secrets mount"},
	{regexp.MustCompile(`(^|/)docker/secrets(/|$)`), "secrets mount"},
}

// CheckSensitivePath reports whether path names secret material and,
// if so, why. The check is containment-independent.
func CheckSensitivePath(path string) (blocked bool, reason string) {
	base := filepath.Base(path)
	if r, ok := sensitiveFileNames[base]; ok {
		return true, r + " is not accessible"
	}
	norm := filepath.ToSlash(path)
	for _, rule := range sensitivePathRules {
		if rule.Pattern.MatchString(norm) {
			return true, rule.Reason + " is not accessible"
		}
	}
	return false, ""
}
