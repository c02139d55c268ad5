package sanitize

import (
	"regexp"
	"strings"

	"social-chat/internal/apperrors"
)

var (
	scriptPattern     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern    = regexp.MustCompile(`(?i)<[^>]+>`)
	jsProtocolPattern = regexp.MustCompile(`(?i)javascript:`)
	onEventPattern    = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Clean rejects content carrying script blocks, javascript: URIs or inline
// event handlers, strips remaining markup and escapes HTML-significant
// characters. Dangerous patterns fail closed rather than being stripped.
// Empty input passes through unchanged.
func Clean(content string) (string, error) {
	if content == "" {
		return content, nil
	}

	if scriptPattern.MatchString(content) {
		return "", apperrors.New(apperrors.CodeInvalidContent, "content contains a script block")
	}
	if jsProtocolPattern.MatchString(content) {
		return "", apperrors.New(apperrors.CodeInvalidContent, "content contains a javascript: URI")
	}
	if onEventPattern.MatchString(content) {
		return "", apperrors.New(apperrors.CodeInvalidContent, "content contains an inline event handler")
	}

	stripped := htmlTagPattern.ReplaceAllString(content, "")
	return htmlEscaper.Replace(stripped), nil
}

// ValidateLength fails with INVALID_CONTENT when content exceeds maxLength
// characters.
func ValidateLength(content string, maxLength int) error {
	if len([]rune(content)) > maxLength {
		return apperrors.New(apperrors.CodeInvalidContent, "content exceeds maximum length")
	}
	return nil
}
