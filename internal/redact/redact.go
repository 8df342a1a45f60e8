// Package redact strips credential material from text before it leaves the
// process. Every error message and log line passes through Token; this is an
// invariant of the server, not an optional nicety.
package redact

import (
	"regexp"
	"strings"
)

// Mask replaces any matched credential run. The mask itself contains no
// characters that the patterns below can match, which makes Token idempotent.
const Mask = "***REDACTED***"

var (
	// GitHub personal access tokens: ghp_ (classic), gho_, ghu_, ghs_, ghr_,
	// each followed by 36+ alphanumerics.
	ghTokenPattern = regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)

	// Bearer values in Authorization headers that leaked into error text.
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9_\-.]+`)

	// Generic token assignments: token=..., "token": "...".
	assignPattern = regexp.MustCompile(`(?i)token["']?\s*[:=]\s*["']?[A-Za-z0-9_\-.]+`)
)

// Token returns text with every credential-shaped substring replaced by Mask.
// Token(Token(s)) == Token(s) for all s.
func Token(text string) string {
	text = ghTokenPattern.ReplaceAllString(text, Mask)
	text = bearerPattern.ReplaceAllString(text, "Bearer "+Mask)
	text = assignPattern.ReplaceAllString(text, "token: "+Mask)
	return text
}

// Map redacts string values in a flat map, masking values outright for keys
// that conventionally hold secrets.
func Map(data map[string]any) map[string]any {
	sensitive := map[string]bool{
		"token": true, "password": true, "secret": true,
		"api_key": true, "apikey": true, "authorization": true,
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch {
		case sensitive[strings.ToLower(k)]:
			out[k] = Mask
		default:
			if s, ok := v.(string); ok {
				out[k] = Token(s)
			} else {
				out[k] = v
			}
		}
	}
	return out
}
