package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// secretParams are query parameters whose values never reach logs.
var secretParams = map[string]bool{
	"key":          true,
	"api_key":      true,
	"apikey":       true,
	"token":        true,
	"access_token": true,
	"auth_token":   true,
	"secret":       true,
	"signature":    true,
	"sig":          true,
	"password":     true,
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(api[_-]?key|secret|access[_-]?token|auth[_-]?token|password|token)=([^\s&"']+)`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}`),
	regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]+=*`),
}

// MaskCredential keeps at most the first and last four characters of value.
func MaskCredential(value string) string {
	switch n := len(value); {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return value[:2] + strings.Repeat("*", n-2)
	default:
		return value[:4] + strings.Repeat("*", n-8) + value[n-4:]
	}
}

// RedactURL masks the password and secret query values of raw. Webhook URLs
// often carry their token in the path, so the final path segment is masked
// too. Unparseable input is masked whole.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return MaskCredential(raw)
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}

	if q := u.Query(); len(q) > 0 {
		for k := range q {
			if secretParams[strings.ToLower(k)] {
				q.Set(k, "xxxxx")
			}
		}
		u.RawQuery = q.Encode()
	}

	if i := strings.LastIndex(u.Path, "/"); i >= 0 && len(u.Path)-i > 1 {
		u.Path = u.Path[:i+1] + MaskCredential(u.Path[i+1:])
		u.RawPath = u.Path
	}
	return u.String()
}

// Redact masks anything in s that looks like a credential.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllStringFunc(s, func(match string) string {
			if k, v, ok := strings.Cut(match, "="); ok {
				return k + "=" + MaskCredential(v)
			}
			return MaskCredential(match)
		})
	}
	return s
}
