package validation

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"chatsync/internal/errors"
	"chatsync/pkg/constants"
)

// ValidateMessageText validates message text for sends and edits.
func ValidateMessageText(text string) error {
	if text == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message text cannot be empty")
	}

	if len(text) > constants.MaxMessageTextLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message text too long (max %d bytes)", constants.MaxMessageTextLength))
	}

	if !utf8.ValidString(text) {
		return errors.New(errors.ErrCodeInvalidInput, "message text is not valid UTF-8")
	}

	return nil
}

// ValidateMessageID validates message ID format and length
func ValidateMessageID(messageID string) error {
	if messageID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message ID cannot be empty")
	}

	if len(messageID) > constants.MaxUserIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message ID too long (max %d characters)", constants.MaxUserIDLength))
	}

	// Check for control characters that could cause issues
	for _, char := range messageID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "message ID contains invalid characters")
		}
	}

	return nil
}

// ValidateEmoji validates a reaction emoji.
func ValidateEmoji(emoji string) error {
	if emoji == "" {
		return errors.New(errors.ErrCodeInvalidInput, "emoji cannot be empty")
	}

	if len(emoji) > constants.MaxEmojiLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("emoji too long (max %d bytes)", constants.MaxEmojiLength))
	}

	if !utf8.ValidString(emoji) {
		return errors.New(errors.ErrCodeInvalidInput, "emoji is not valid UTF-8")
	}

	for _, char := range emoji {
		if unicode.IsControl(char) || unicode.IsSpace(char) {
			return errors.New(errors.ErrCodeInvalidInput, "emoji contains invalid characters")
		}
	}

	return nil
}

// ValidateUserID validates a user identifier.
func ValidateUserID(userID string) error {
	if userID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "user ID cannot be empty")
	}

	if len(userID) > constants.MaxUserIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("user ID too long (max %d characters)", constants.MaxUserIDLength))
	}

	for _, char := range userID {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' && char != '.' && char != '@' {
			return errors.New(errors.ErrCodeInvalidInput,
				"user ID must contain only letters, numbers, and _-.@")
		}
	}

	return nil
}

// ValidateSessionID validates a session identifier.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "session ID cannot be empty")
	}

	if len(sessionID) > constants.MaxSessionIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("session ID too long (max %d characters)", constants.MaxSessionIDLength))
	}

	for _, char := range sessionID {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput,
				"session ID must contain only letters, numbers, underscores, and dashes")
		}
	}

	return nil
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > 3600 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max 3600 seconds)", fieldName))
	}

	return nil
}
