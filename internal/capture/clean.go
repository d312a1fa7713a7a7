package capture

import (
	"regexp"
	"strings"
)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z_\s]*[\)\]]`)

// timestampPrefix matches "[00:00:00.000 --> 00:00:05.000]".
var timestampPrefix = regexp.MustCompile(`^\[[0-9:.]+\s*-->\s*[0-9:.]+\]`)

// Whole-utterance hallucinations whisper produces on silence.
var hallucinations = map[string]bool{
	"...":                     true,
	"you":                     true,
	"thank you.":              true,
	"thanks for watching!":    true,
	"thank you for watching.": true,
	"bye.":                    true,
	"bye!":                    true,
	"the end.":                true,
	"sous-titres réalisés para la communauté d'amara.org": true,
}

// CleanTranscription normalizes whitespace and removes whisper artifacts
// ("[BLANK_AUDIO]", "(silence)", timestamps). Known silence hallucinations
// come back as "".
func CleanTranscription(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	s = strings.TrimSpace(s)

	if loc := timestampPrefix.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}

	s = envAnnotation.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	return s
}
