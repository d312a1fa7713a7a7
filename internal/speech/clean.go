package speech

import (
	"regexp"
	"strings"
)

var (
	ansiCodes     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	bracketPrefix = regexp.MustCompile(`^\[[A-Za-z]+\]\s*`)
	codeFence     = regexp.MustCompile("(?m)^```.*$")
	mdLink        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading     = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdBullet      = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdEmphasis    = regexp.MustCompile(`(\*\*|__|\*|_|~~|` + "`" + `)`)
)

// CleanForSpeech strips formatting that shouldn't be read aloud: terminal
// colors, markdown fences, headings, bullets, emphasis, and link targets.
func CleanForSpeech(msg string) string {
	s := ansiCodes.ReplaceAllString(msg, "")
	s = bracketPrefix.ReplaceAllString(s, "")
	s = codeFence.ReplaceAllString(s, "")
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdBullet.ReplaceAllString(s, "")
	s = mdEmphasis.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
