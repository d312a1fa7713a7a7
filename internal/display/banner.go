package display

import (
	_ "embed"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerRaw string

// RenderBanner returns the banner art followed by the given info lines,
// centred for the current terminal width.
func RenderBanner(info ...string) string {
	lines := strings.Split(strings.TrimRight(bannerRaw, "\n"), "\n")
	var b strings.Builder
	for _, l := range centre(lines, termWidth()) {
		b.WriteString(BannerStyle.Render(l))
		b.WriteByte('\n')
	}
	if len(info) > 0 {
		b.WriteByte('\n')
		for _, l := range info {
			b.WriteString(secondaryStyle.Render("  " + l))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// centre pads every line by the same amount so the block sits in the
// middle of a terminal of the given width. Lines keep their relative
// indentation.
func centre(lines []string, width int) []string {
	maxW := 0
	for _, l := range lines {
		if len(l) > maxW {
			maxW = len(l)
		}
	}
	pad := ""
	if width > maxW {
		pad = strings.Repeat(" ", (width-maxW)/2)
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = pad + l
	}
	return out
}

// termWidth returns the current terminal column count, or 80 as fallback.
func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
