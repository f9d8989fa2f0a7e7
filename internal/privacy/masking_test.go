package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskUserID(t *testing.T) {
	assert.Equal(t, "***********7890", MaskUserID("user-1234567890"))
	assert.Equal(t, "***", MaskUserID("abc"))
	assert.Equal(t, "", MaskUserID(""))
}

func TestMaskMessageID(t *testing.T) {
	assert.Equal(t, strings.Repeat("*", 24)+"446655440000",
		MaskMessageID("550e8400-e29b-41d4-a716-446655440000"))
	assert.Equal(t, "", MaskMessageID(""))
}

func TestMaskMessageIDWithoutSeparatorKeepsLastEight(t *testing.T) {
	assert.Equal(t, "********23456789", MaskMessageID("abcdefgh23456789"))
}

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "**********on-1", MaskSessionID("chat-session-1"))
}

func TestMaskText(t *testing.T) {
	assert.Equal(t, "[redacted]", MaskText("secret message"))
	assert.Equal(t, "", MaskText(""))
}

func TestMaskSensitiveFields(t *testing.T) {
	fields := map[string]interface{}{
		"user_id":    "user-1234567890",
		"message_id": "abc-def",
		"session_id": "session-12",
		"text":       "hello there",
		"status":     "pending",
		"count":      3,
	}

	masked := MaskSensitiveFields(fields)
	assert.Equal(t, "***********7890", masked["user_id"])
	assert.Equal(t, "****def", masked["message_id"])
	assert.Equal(t, "[redacted]", masked["text"])
	assert.Equal(t, "pending", masked["status"])
	assert.Equal(t, 3, masked["count"])

	// Original map is untouched.
	assert.Equal(t, "hello there", fields["text"])
}

func TestMaskSensitiveFieldsNil(t *testing.T) {
	assert.Nil(t, MaskSensitiveFields(nil))
}

func TestMaskSensitiveFieldsNonStringValuesPassThrough(t *testing.T) {
	masked := MaskSensitiveFields(map[string]interface{}{"user_id": 42})
	assert.Equal(t, 42, masked["user_id"])
}
