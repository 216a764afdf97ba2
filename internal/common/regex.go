package common

import (
	"regexp"
	"strings"
)

// FirstGroup returns the first capture group of re in text, trimmed. The
// second return value is false when re does not match or the group is blank.
func FirstGroup(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}
