// Package sanitize implements output sanitization for captured command
// output before it is returned to the model.
//
// Order of operations matters: encoded and structured secret dumps
// suppress the whole output (partial redaction of a decoded dump is
// unreliable), targeted redaction runs only when neither bulk detector
// fires, and truncation is applied last so a secret split across the
// truncation boundary cannot reappear whole.
package sanitize

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// BlockedOutputMarker replaces output that looks like a secret dump.
const BlockedOutputMarker = "[output blocked: possible secret material detected]"

// Config tunes the sanitizer thresholds.
type Config struct {
	// MaxOutputBytes is the post-sanitization truncation limit.
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// EnvJSONKeyThreshold is how many uppercase keys a JSON object may
	// carry before it is treated as an environment dump.
	EnvJSONKeyThreshold int `yaml:"env_json_key_threshold"`

	// EnvLineThreshold is how many VAR=value lines output may carry
	// before it is treated as an environment dump.
	EnvLineThreshold int `yaml:"env_line_threshold"`
}

// DefaultConfig returns the sanitizer defaults.
func DefaultConfig() Config {
	return Config{
		MaxOutputBytes:      64 * 1024,
		EnvJSONKeyThreshold: 5,
		EnvLineThreshold:    5,
	}
}

// Sanitizer redacts or suppresses secrets in captured output.
type Sanitizer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a sanitizer. Zero thresholds fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Sanitizer {
	def := DefaultConfig()
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.EnvJSONKeyThreshold <= 0 {
		cfg.EnvJSONKeyThreshold = def.EnvJSONKeyThreshold
	}
	if cfg.EnvLineThreshold <= 0 {
		cfg.EnvLineThreshold = def.EnvLineThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{cfg: cfg, logger: logger.With("component", "sanitize")}
}

// Sanitize redacts secrets in raw output. When the output looks like an
// encoded or structured dump of secrets the whole output is replaced by
// BlockedOutputMarker and blocked is true.
func (s *Sanitizer) Sanitize(raw string) (clean string, blocked bool) {
	if raw == "" {
		return "", false
	}

	if s.looksLikeEncodedSecretDump(raw) {
		s.logger.Warn("output suppressed", "detector", "base64_secret_dump")
		return BlockedOutputMarker, true
	}
	if s.looksLikeEnvDump(raw) {
		s.logger.Warn("output suppressed", "detector", "env_dump")
		return BlockedOutputMarker, true
	}

	clean = keyValuePattern.ReplaceAllString(raw, "$1=[REDACTED]")
	for _, tp := range tokenPatterns {
		clean = tp.Pattern.ReplaceAllStringFunc(clean, maskToken)
	}
	return clean, false
}

// Process sanitizes and then truncates, in that order.
func (s *Sanitizer) Process(raw string) (clean string, blocked bool) {
	clean, blocked = s.Sanitize(raw)
	if blocked {
		return clean, true
	}
	return s.Truncate(clean), false
}

// Truncate bounds output length keeping a head and tail slice around an
// elision marker. Cut points back off to rune boundaries so the result
// stays valid UTF-8.
func (s *Sanitizer) Truncate(text string) string {
	if len(text) <= s.cfg.MaxOutputBytes {
		return text
	}
	head := s.cfg.MaxOutputBytes / 2
	for head > 0 && !utf8.RuneStart(text[head]) {
		head--
	}
	tail := len(text) - (s.cfg.MaxOutputBytes - s.cfg.MaxOutputBytes/2)
	for tail < len(text) && !utf8.RuneStart(text[tail]) {
		tail++
	}
	return text[:head] +
		fmt.Sprintf("\n... [%d bytes truncated] ...\n", tail-head) +
		text[tail:]
}

// ---------- Bulk dump detectors ----------

// looksLikeEncodedSecretDump decodes long base64 runs and tests the
// decoded text for secret indicators.
func (s *Sanitizer) looksLikeEncodedSecretDump(raw string) bool {
	for _, run := range base64RunPattern.FindAllString(raw, -1) {
		decoded, err := base64.StdEncoding.DecodeString(run)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(run)
		}
		if err != nil || !isMostlyPrintable(decoded) {
			continue
		}
		upper := strings.ToUpper(string(decoded))
		for _, indicator := range decodedSecretIndicators {
			if strings.Contains(upper, indicator) {
				return true
			}
		}
	}
	return false
}

// looksLikeEnvDump detects structured environment dumps: either a JSON
// object with many uppercase keys, or many shell-style VAR=value lines,
// combined with at least one sensitive key name.
func (s *Sanitizer) looksLikeEnvDump(raw string) bool {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			upper := 0
			sensitive := false
			for key := range obj {
				if uppercaseKeyPattern.MatchString(key) {
					upper++
					if isSensitiveKey(key) {
						sensitive = true
					}
				}
			}
			if upper > s.cfg.EnvJSONKeyThreshold && sensitive {
				return true
			}
		}
	}

	lines := envLinePattern.FindAllString(raw, -1)
	if len(lines) > s.cfg.EnvLineThreshold {
		for _, line := range lines {
			key := line[:strings.IndexByte(line, '=')]
			if isSensitiveKey(key) {
				return true
			}
		}
	}
	return false
}

// isSensitiveKey reports whether an uppercase key name indicates a
// secret.
func isSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, indicator := range sensitiveKeyIndicators {
		if strings.Contains(upper, indicator) {
			return true
		}
	}
	return false
}

// maskToken keeps a short prefix of a matched token and replaces the
// rest, so logs stay debuggable without revealing the secret.
func maskToken(token string) string {
	const keep = 4
	if len(token) <= keep*2 {
		return "[REDACTED]"
	}
	return token[:keep] + "[REDACTED]"
}

// isMostlyPrintable reports whether decoded bytes look like text worth
// inspecting (binary blobs are not secret dumps).
func isMostlyPrintable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	printable := 0
	for _, b := range data {
		if b == '\n' || b == '\r' || b == '\t' || unicode.IsPrint(rune(b)) {
			printable++
		}
	}
	return printable*10 >= len(data)*9
}
