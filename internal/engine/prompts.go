package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxInstructionRunes bounds the instruction forwarded to the image service.
const maxInstructionRunes = 2000

func buildEditPrompt(instruction string) string {
	return fmt.Sprintf("Please edit this image based on the following instruction: %s. Return only the edited image.",
		truncateRunes(strings.TrimSpace(instruction), maxInstructionRunes))
}

// truncateRunes truncates s to maxRunes runes (Unicode-safe).
func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
