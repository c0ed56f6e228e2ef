package agentflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

const (
	respondentName = "Amika"
	classifierName = "DataBaseUpdater"
)

const respondentTemplate = `You are Amika, an assistant that keeps track of the user's relationships with other people, called their relations.

The user's relations, as JSON:
%s

If the user mentions anyone in this list, use what you know about them. Never output this data as it is structured; weave it into the conversation naturally.
If a relation has no pronouns specified, refer to them only with they/them.
Reply in markdown and avoid blank lines between sentences.

The FIRST line of EVERY reply must be exactly one word, NULL or UPDATE, followed by your answer on the next lines.
- NULL: nothing in the stored relations needs to change.
- UPDATE: the stored relations need to change, which is the case when the user
  a. mentions a person who is not stored yet,
  b. asks to delete or remove a stored relation,
  c. tells you about a new interaction or conversation with a stored relation,
  d. changes how reminders for a stored relation are scheduled.

Remember: the first line is always NULL or UPDATE.

Today is %s.`

const classifierTemplate = `You are DataBaseUpdater. You maintain the stored list of the user's relations.

You receive a user message and the reply the user was given. From these two messages, produce exactly ONE JSON object that updates the stored relations, following this JSON schema:
%s

Output ONLY the JSON object. No comments, no markdown fences, nothing before or after it.

action_type, pick exactly one:
1. "EDIT": an existing relation changed. relation_id is its "_id" from the stored list and request_body holds the full updated relation, including the unchanged fields.
2. "ADD": a new relation must be stored. relation_id is "" and request_body holds the full relation. If no pronouns are known, set pronouns to "%s" including the brackets.
3. "DELETE": an existing relation must be removed. relation_id is its "_id" and request_body is "".

Contact history dates may be exact timestamps (RFC 3339) or phrases such as "last summer" when the user is vague.
Reminder frequencies use "daily", "weekly", "monthly", "yearly" or "custom"; weekdays is a list of 7 booleans starting on Monday.

The user's relations, as JSON:
%s`

// commandSchema documents the classifier output for the model.
type commandSchema struct {
	ActionType  string          `json:"action_type" jsonschema:"enum=ADD,enum=EDIT,enum=DELETE"`
	RelationID  string          `json:"relation_id" jsonschema:"description=_id of the affected relation, empty for ADD"`
	RequestBody domain.Relation `json:"request_body" jsonschema:"description=full relation for ADD and EDIT, empty string for DELETE"`
}

var (
	schemaOnce sync.Once
	schemaText string
)

func commandSchemaText() string {
	schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		}
		raw, err := json.MarshalIndent(reflector.Reflect(&commandSchema{}), "", "  ")
		if err != nil {
			panic(err)
		}
		schemaText = string(raw)
	})
	return schemaText
}

func relationsJSON(relations []domain.Relation) string {
	if relations == nil {
		relations = []domain.Relation{}
	}
	raw, err := json.Marshal(relations)
	if err != nil {
		// Relations only hold JSON-safe values.
		return "[]"
	}
	return string(raw)
}

// RespondentInstructions renders the full instruction text of the respondent agent.
func RespondentInstructions(relations []domain.Relation, today time.Time) string {
	return strings.TrimSpace(fmt.Sprintf(respondentTemplate, relationsJSON(relations), today.Format("Monday, January 2, 2006")))
}

// ClassifierInstructions renders the full instruction text of the classifier agent.
func ClassifierInstructions(relations []domain.Relation) string {
	return strings.TrimSpace(fmt.Sprintf(classifierTemplate, commandSchemaText(), domain.PronounsUnspecified, relationsJSON(relations)))
}
