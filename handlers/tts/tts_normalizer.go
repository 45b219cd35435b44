package tts

import (
	"regexp"
	"strings"
)

// normalizeTextForTTS strips formatting the voice would otherwise read aloud.
func normalizeTextForTTS(text string) string {
	text = removeMarkdown(text)
	text = removeEmojis(text)
	text = collapseWhitespace(text)
	return strings.TrimSpace(text)
}

var markdownReplacer = strings.NewReplacer(
	"__", "", // underline
	"~~", "", // strikethrough
	"`", "", // inline code
)

// Asterisks only count as markup when they wrap text, so "2 * 3" survives.
func removeMarkdown(text string) string {
	text = headingRegex.ReplaceAllString(text, "")
	text = bulletRegex.ReplaceAllString(text, "")
	text = linkRegex.ReplaceAllString(text, "$1")
	text = boldRegex.ReplaceAllString(text, "$1")
	text = italicRegex.ReplaceAllString(text, "${1}${2}")
	text = strayBoldRegex.ReplaceAllString(text, "")
	return markdownReplacer.Replace(text)
}

// Only pictographic symbols go; letters with combining marks are left intact.
func removeEmojis(text string) string {
	return emojiRegex.ReplaceAllString(text, "")
}

func collapseWhitespace(text string) string {
	return multipleSpacesRegex.ReplaceAllString(text, " ")
}

var (
	headingRegex        = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	bulletRegex         = regexp.MustCompile(`(?m)^\s*[*-]\s+`)
	linkRegex           = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	boldRegex           = regexp.MustCompile(`\*\*([^\s*](?:[^*\n]*[^\s*])?)\*\*`)
	italicRegex         = regexp.MustCompile(`(^|[^\p{L}\p{N}*])\*([^\s*](?:[^*\n]*[^\s*])?)\*`)
	strayBoldRegex      = regexp.MustCompile(`\*{2,}`)
	emojiRegex          = regexp.MustCompile(`(?:\x{200D}?[\p{So}\x{1F3FB}-\x{1F3FF}]\x{FE0F}?)+`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)
