package triage

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pawcare-labs/pawcare/internal/domain"
)

const (
	// MaxTips caps the tips extracted from one reply.
	MaxTips = 4
	// minTipRunes is the shortest tip text kept after stripping markers.
	minTipRunes = 8
)

var numberedMarker = regexp.MustCompile(`^\d{1,2}[.)]\s+`)

// Lines containing these are refusals, not advice.
var nonTipPhrases = []string{
	"off-topic",
	"off topic",
	"only help with",
	"only answer",
	"only discuss",
	"can't help with",
	"cannot help with",
}

// ExtractTips picks up to MaxTips bullet or emoji-led lines out of a generated
// reply. It is pure: the same text always yields the same tips.
func ExtractTips(text string) []domain.CareTip {
	var tips []domain.CareTip
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !hasTipMarker(line) {
			continue
		}
		tip := stripTipMarker(line)
		if utf8.RuneCountInString(tip) < minTipRunes || isNonTip(tip) {
			continue
		}
		tips = append(tips, domain.CareTip{Text: tip})
		if len(tips) == MaxTips {
			break
		}
	}
	return tips
}

func hasTipMarker(line string) bool {
	if line == "" {
		return false
	}
	if numberedMarker.MatchString(line) {
		return true
	}
	r, size := utf8.DecodeRuneInString(line)
	if r == '*' {
		// "**bold**" opens with an asterisk too; a list item has a space.
		return strings.HasPrefix(line[size:], " ")
	}
	return isBullet(r) || isEmoji(r)
}

func stripTipMarker(line string) string {
	line = numberedMarker.ReplaceAllString(line, "")
	line = strings.TrimLeftFunc(line, func(r rune) bool {
		return isBullet(r) || isEmoji(r) || unicode.IsSpace(r) || r == '\uFE0F' || r == '\u200D'
	})
	line = strings.ReplaceAll(line, "**", "")
	return strings.TrimSpace(line)
}

func isBullet(r rune) bool {
	switch r {
	case '•', '-', '*', '·', '–', '—', '▪', '▸', '►', '✓', '✔':
		return true
	}
	return false
}

func isEmoji(r rune) bool {
	return unicode.Is(unicode.So, r) || (r >= 0x1F000 && r <= 0x1FAFF)
}

func isNonTip(tip string) bool {
	lower := strings.ToLower(tip)
	for _, p := range nonTipPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
