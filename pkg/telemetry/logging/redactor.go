package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log attribute values. It is installed as
// the ReplaceAttr hook of the slog handler.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAWSKey      = "aws_access_key"
	PatternGitHubToken = "github_token"
	PatternStripeKey   = "stripe_key"
	PatternPrivateKey  = "private_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"authorization", "credential",
	"private_key", "privatekey",
}

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	defs := []struct {
		name, regex, replacement string
	}{
		{PatternAWSKey, `AKIA[0-9A-Z]{16}`, "AKIA***"},
		{PatternGitHubToken, `gh[po]_[a-zA-Z0-9]{36}`, "gh*_***"},
		{PatternStripeKey, `sk_(test|live)_[a-zA-Z0-9]{24,}`, "sk_${1}_***"},
		{PatternPrivateKey, `-----BEGIN[A-Z ]*PRIVATE KEY-----`, "[private key]"},
		{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
		{PatternPassword, `(password|passwd|pwd)[:=]\s*[^\s]+`, "$1: ***"},
	}

	r := &Redactor{}
	for _, d := range defs {
		r.patterns = append(r.patterns, &redactPattern{
			name:        d.name,
			regex:       regexp.MustCompile(d.regex),
			replacement: d.replacement,
		})
	}
	return r
}

// RedactString replaces every credential-like substring of value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// ReplaceAttr masks the whole value of sensitive keys and pattern-redacts
// every other string value.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, maskValue(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// maskValue keeps a four character prefix of long values for correlation.
func maskValue(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) <= 4:
		return "***"
	default:
		return v[:4] + "***"
	}
}
