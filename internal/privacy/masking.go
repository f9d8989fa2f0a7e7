package privacy

import "strings"

// MaskUserID masks a user identifier for logs.
// Example: "user-1234567890" -> "***********7890"
func MaskUserID(userID string) string {
	return maskString(userID, 4)
}

// MaskMessageID masks a message id while keeping enough of the tail to
// correlate log lines. Message ids are UUIDs, so the last block is unique
// enough for debugging.
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}
	if i := strings.LastIndex(messageID, "-"); i >= 0 {
		return strings.Repeat("*", i+1) + messageID[i+1:]
	}
	return maskString(messageID, 8)
}

// MaskSessionID masks a session identifier, keeping the last 4 characters.
func MaskSessionID(sessionID string) string {
	return maskString(sessionID, 4)
}

// MaskText replaces message text with a length marker. Message contents never
// reach the logs outside verbose mode.
func MaskText(text string) string {
	if text == "" {
		return ""
	}
	return "[redacted]"
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "user_id", "userId", "sender_id", "senderId":
			if s, ok := v.(string); ok {
				masked[k] = MaskUserID(s)
			} else {
				masked[k] = v
			}
		case "message_id", "messageId", "local_id", "localId":
			if s, ok := v.(string); ok {
				masked[k] = MaskMessageID(s)
			} else {
				masked[k] = v
			}
		case "session_id", "sessionId":
			if s, ok := v.(string); ok {
				masked[k] = MaskSessionID(s)
			} else {
				masked[k] = v
			}
		case "text", "original_text", "translated_text", "new_text":
			if s, ok := v.(string); ok {
				masked[k] = MaskText(s)
			} else {
				masked[k] = v
			}
		default:
			masked[k] = v
		}
	}
	return masked
}
