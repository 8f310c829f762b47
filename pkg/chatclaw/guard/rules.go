// Package guard – rules.go holds the command pattern lists as data.
// Keeping patterns in tables (instead of inline literals) lets tests
// enumerate "this string must trigger this rule" independent of the
// classifier control flow.
package guard

import "regexp"

// CommandRule pairs a compiled pattern with a stable name and the
// human-readable reason reported to the caller.
type CommandRule struct {
	Name    string
	Pattern *regexp.Regexp
	Message string
}

// compileRules builds CommandRules from name/pattern/message triples.
// All patterns are case-insensitive.
func compileRules(triples [][3]string) []CommandRule {
	rules := make([]CommandRule, 0, len(triples))
	for _, t := range triples {
		rules = append(rules, CommandRule{
			Name:    t[0],
			Pattern: regexp.MustCompile("(?i)" + t[1]),
			Message: t[2],
		})
	}
	return rules
}

// blockedRules are never executable regardless of approval:
// irrecoverably destructive operations and direct secret reads.
var blockedRules = compileRules([][3]string{
	{"mkfs", `\bmkfs\b`, "formatting filesystems is never allowed"},
	{"dd-device", `\bdd\s+[^\n]*of=/dev/`, "writing to block devices is never allowed"},
	{"device-overwrite", `>\s*/dev/sd`, "writing to block devices is never allowed"},
	{"fork-bomb", `:\(\)\{\s*:\|:&\s*\};:`, "fork bomb detected"},
	{"chmod-root", `\bchmod\s+(-[a-zA-Z]+\s+)*[0-7]{3,4}\s+/(\s|$)`, "changing permissions on / is never allowed"},
	{"shutdown", `\b(shutdown|reboot|poweroff|halt)\b`, "power management commands are never allowed"},
	{"firewall-flush", `\biptables\s+-F\b|\bufw\s+disable\b`, "disabling the firewall is never allowed"},
	{"user-admin", `\b(passwd|useradd|userdel|usermod|groupdel)\b`, "user administration is never allowed"},
	{"shadow-read", `/etc/(shadow|sudoers)`, "reading system credential files is never allowed"},
	{"secrets-mount", `/run/secrets`, "the secrets mount is never accessible"},
	{"env-dump", `\b(printenv|env)\s*($|\||>)`, "dumping the environment is never allowed"},
	{"env-file-read", `\b(cat|head|tail|less|more|grep|cp|mv)\s+[^\n]*\.env\b`, "reading environment files is never allowed"},
	{"ssh-key-read", `\b(cat|head|tail|less|more|cp|scp)\s+[^\n]*(id_rsa|id_ed25519|\.ssh/)`, "reading SSH key material is never allowed"},
	{"history-wipe", `\bhistory\s+-c\b|\bshred\b`, "destroying history or files irrecoverably is never allowed"},
	{"crontab-wipe", `\bcrontab\s+-r\b`, "wiping the crontab is never allowed"},
	{"curl-pipe-shell", `\b(curl|wget)\s+[^\n|]*\|\s*(sudo\s+)?(ba)?sh\b`, "piping downloads into a shell is never allowed"},
	{"drop-database", `DROP\s+(DATABASE|TABLE)|TRUNCATE\s+TABLE`, "destructive SQL is never allowed"},
})

// dangerousRules carry broad but recoverable risk. They require
// explicit approval in private chats and are blocked outright in
// group chats.
var dangerousRules = compileRules([][3]string{
	{"rm-recursive", `\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+`, "recursive or forced delete"},
	{"chmod-recursive", `\bchmod\s+(-[a-zA-Z]*R[a-zA-Z]*\s+)`, "recursive permission change"},
	{"chown", `\bchown\b`, "ownership change"},
	{"pkg-install", `\b(apt(-get)?|yum|dnf|apk|pacman)\s+(install|remove|purge)\b`, "system package change"},
	{"npm-global", `\bnpm\s+(install|i)\s+(-g|--global)\b`, "global package install"},
	{"pip-system", `\bpip[0-9.]*\s+install\b`, "python package install"},
	{"git-force", `\bgit\s+push\s+[^\n]*(--force|-f)\b`, "force push"},
	{"git-clean", `\bgit\s+(clean\s+-[a-zA-Z]*f|reset\s+--hard)\b`, "irreversible git operation"},
	{"docker-destroy", `\bdocker\s+(rm|rmi|system\s+prune|volume\s+rm)\b`, "docker resource removal"},
	{"systemctl", `\bsystemctl\s+(stop|restart|disable|mask)\b`, "service state change"},
	{"kill", `\b(kill|pkill|killall)\b`, "process termination"},
})

// serverRules match commands that start listening processes. The agent
// must never turn the workspace host into a network server.
var serverRules = compileRules([][3]string{
	{"python-http", `\bpython[0-9.]*\s+-m\s+(http\.server|SimpleHTTPServer)\b`, "built-in HTTP server"},
	{"php-server", `\bphp\s+-S\b`, "PHP dev server"},
	{"ruby-server", `\bruby\s+-run\s+-e\s*httpd\b|\brails\s+s(erver)?\b`, "Ruby web server"},
	{"node-dev-server", `\bnpx?\s+(http-server|serve|vite|next\s+dev|webpack-dev-server|live-server)\b`, "Node dev server"},
	{"npm-dev", `\b(npm|pnpm|yarn|bun)\s+(run\s+)?(dev|start|serve)\b`, "package dev server"},
	{"flask-run", `\bflask\s+run\b|\buvicorn\b|\bgunicorn\b`, "Python web server"},
	{"nc-listen", `\b(nc|ncat|netcat)\s+[^\n]*-[a-z]*l`, "listening netcat"},
	{"socat-listen", `\bsocat\s+[^\n]*listen`, "listening socat"},
	{"tunnel", `\b(ngrok|cloudflared\s+tunnel|localtunnel|\blt\s+--port)\b`, "tunnel to the outside"},
})

// inlineServerPattern matches server-creation idioms inside one-liner
// script evaluation (-e / -c flags).
var inlineServerPattern = regexp.MustCompile(`(?i)(createServer|\.listen\s*\(|http\.server|socketserver|ListenAndServe|HTTPServer|app\.run\s*\()`)

// inlineEvalPattern extracts the code argument of interpreter one-liners.
var inlineEvalPattern = regexp.MustCompile(`(?i)\b(?:node|python[0-9.]*|ruby|perl)\s+(?:-\S+\s+)*-[ec]\s+(.+)`)

// substitutionPattern matches command or variable substitution that
// makes a target dynamically computed.
var substitutionPattern = regexp.MustCompile("\\$\\(|`|\\$\\{")

// cdTargetPattern extracts cd targets from a command chain.
var cdTargetPattern = regexp.MustCompile(`(?:^|;|&&|\|\||\|)\s*cd(?:\s+([^\s;|&]+))?`)

// cdParentPattern matches a cd into the parent directory.
var cdParentPattern = regexp.MustCompile(`\bcd\s+\.\.(\s|$|/)`)

// scriptFilePattern matches tokens that look like executable script
// files whose content must be scanned before the command runs.
var scriptFilePattern = regexp.MustCompile(`(?i)^[^-][^\s]*\.(sh|bash|py|js|mjs|cjs|ts|rb|pl|php)$`)
