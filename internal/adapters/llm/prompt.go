package llm

import (
	"encoding/json"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

const notificationSystemPrompt = `
You write short reminder emails for "Amika", an assistant that helps people keep in touch with the people they care about.

Output format:
- HTML only. Do NOT include <!DOCTYPE>, <html>, <head> or <body> tags; start directly with <p> tags.
- 20 to 50 words: a greeting addressed to the recipient and the body. No subject line, no sign-off.

Content:
- Ask the recipient whether they have reached out to their relation through the given method of contact.
- If they have not, suggest one or two topics they could talk about, based on the relation's overview and contact history.
- Mention the method of contact they should use.
- The recipient will answer with one of two links, "Yes, I have chatted with them" or "No, I have not, I would like assistance", so do not add your own call to action.

Tone:
- Encouraging and casual.
`

// Prompt represents the system prompt + the content to send as "user".
type Prompt struct {
	System string
	User   string
}

// BuildNotificationPrompt renders the relation details as the JSON document the
// model reads as the user message.
func BuildNotificationPrompt(nc domain.NotificationContext) (Prompt, error) {
	payload, err := json.Marshal(nc)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		System: notificationSystemPrompt,
		User:   string(payload),
	}, nil
}
