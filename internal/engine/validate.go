package engine

import (
	"fmt"
	"unicode/utf8"
)

const (
	// MaxMessageBytes caps the encoded text size of one message.
	MaxMessageBytes = 4096

	// MaxTextChars caps the character count of one message.
	MaxTextChars = 2000
)

// ValidateMessage checks that chat message text meets content requirements.
func ValidateMessage(text string) error {
	if len(text) == 0 {
		return fmt.Errorf("message text is empty")
	}
	if len(text) > MaxMessageBytes {
		return fmt.Errorf("message exceeds %d byte limit", MaxMessageBytes)
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("message exceeds %d character limit", MaxTextChars)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("message contains invalid UTF-8")
	}
	return nil
}
