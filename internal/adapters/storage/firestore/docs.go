package firestore

import (
	"time"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type userDoc struct {
	Email     string `firestore:"email"`
	FirstName string `firestore:"first_name"`
	LastName  string `firestore:"last_name"`
	Pronouns  string `firestore:"pronouns"`
	Picture   string `firestore:"picture"`
	Interests string `firestore:"interests"`

	FirstAssistantID  string   `firestore:"first_assistant_id"`
	FirstThreadIDs    []string `firestore:"first_thread_ids"`
	SecondAssistantID string   `firestore:"second_assistant_id"`
	SecondThreadIDs   []string `firestore:"second_thread_ids"`

	Relations []relationDoc `firestore:"relations"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type relationDoc struct {
	ID                string                 `firestore:"id"`
	Name              string                 `firestore:"name"`
	Picture           string                 `firestore:"picture"`
	Pronouns          string                 `firestore:"pronouns"`
	RelationshipType  string                 `firestore:"relationship_type"`
	ContactFrequency  []contactFrequencyDoc  `firestore:"contact_frequency"`
	Overview          string                 `firestore:"overview"`
	ContactHistory    []contactHistoryDoc    `firestore:"contact_history"`
	ReminderFrequency []reminderFrequencyDoc `firestore:"reminder_frequency"`
	ReminderEnabled   bool                   `firestore:"reminder_enabled"`
}

type contactFrequencyDoc struct {
	Method    string `firestore:"method"`
	Frequency string `firestore:"frequency"`
}

type contactHistoryDoc struct {
	Date   string `firestore:"date"`
	Topic  string `firestore:"topic"`
	Method string `firestore:"method"`
}

type reminderFrequencyDoc struct {
	Method      string        `firestore:"method"`
	Frequency   recurrenceDoc `firestore:"frequency"`
	Occurrences []time.Time   `firestore:"occurrences"`
}

type recurrenceDoc struct {
	StartDate  time.Time `firestore:"start_date"`
	EndDate    time.Time `firestore:"end_date"`
	Frequency  string    `firestore:"frequency"`
	Weekdays   []bool    `firestore:"weekdays"`
	Time       time.Time `firestore:"time"`
	CustomNum  int       `firestore:"custom_num"`
	CustomUnit string    `firestore:"custom_unit"`
	CustomText string    `firestore:"custom_text"`
}

func newUserDoc(u *domain.User) userDoc {
	doc := userDoc{
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Pronouns:          u.Pronouns,
		Picture:           u.Picture,
		Interests:         u.Interests,
		FirstAssistantID:  string(u.RespondentAgentID),
		SecondAssistantID: string(u.ClassifierAgentID),
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
	for _, id := range u.RespondentThreadIDs {
		doc.FirstThreadIDs = append(doc.FirstThreadIDs, string(id))
	}
	for _, id := range u.ClassifierThreadIDs {
		doc.SecondThreadIDs = append(doc.SecondThreadIDs, string(id))
	}
	for _, r := range u.Relations {
		doc.Relations = append(doc.Relations, newRelationDoc(r))
	}
	return doc
}

func newRelationDoc(r domain.Relation) relationDoc {
	doc := relationDoc{
		ID:               string(r.ID),
		Name:             r.Name,
		Picture:          r.Picture,
		Pronouns:         r.Pronouns,
		RelationshipType: r.RelationshipType,
		Overview:         r.Overview,
		ReminderEnabled:  r.ReminderEnabled,
	}
	for _, cf := range r.ContactFrequency {
		doc.ContactFrequency = append(doc.ContactFrequency, contactFrequencyDoc(cf))
	}
	for _, h := range r.ContactHistory {
		doc.ContactHistory = append(doc.ContactHistory, contactHistoryDoc(h))
	}
	for _, rf := range r.ReminderFrequency {
		spec := rf.Frequency
		doc.ReminderFrequency = append(doc.ReminderFrequency, reminderFrequencyDoc{
			Method: rf.Method,
			Frequency: recurrenceDoc{
				StartDate:  spec.StartDate,
				EndDate:    spec.EndDate,
				Frequency:  string(spec.Frequency),
				Weekdays:   spec.Weekdays[:],
				Time:       spec.Time,
				CustomNum:  spec.Custom.Num,
				CustomUnit: string(spec.Custom.Unit),
				CustomText: spec.CustomText,
			},
			Occurrences: rf.Occurrences,
		})
	}
	return doc
}

func (d userDoc) toDomain(id domain.UserID) *domain.User {
	u := &domain.User{
		ID:                id,
		Email:             d.Email,
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		Pronouns:          d.Pronouns,
		Picture:           d.Picture,
		Interests:         d.Interests,
		RespondentAgentID: domain.AgentID(d.FirstAssistantID),
		ClassifierAgentID: domain.AgentID(d.SecondAssistantID),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	for _, id := range d.FirstThreadIDs {
		u.RespondentThreadIDs = append(u.RespondentThreadIDs, domain.ThreadID(id))
	}
	for _, id := range d.SecondThreadIDs {
		u.ClassifierThreadIDs = append(u.ClassifierThreadIDs, domain.ThreadID(id))
	}
	for _, r := range d.Relations {
		u.Relations = append(u.Relations, r.toDomain())
	}
	return u
}

func (d relationDoc) toDomain() domain.Relation {
	r := domain.Relation{
		ID:               domain.RelationID(d.ID),
		Name:             d.Name,
		Picture:          d.Picture,
		Pronouns:         d.Pronouns,
		RelationshipType: d.RelationshipType,
		Overview:         d.Overview,
		ReminderEnabled:  d.ReminderEnabled,
	}
	for _, cf := range d.ContactFrequency {
		r.ContactFrequency = append(r.ContactFrequency, domain.ContactFrequency(cf))
	}
	for _, h := range d.ContactHistory {
		r.ContactHistory = append(r.ContactHistory, domain.ContactHistory(h))
	}
	for _, rf := range d.ReminderFrequency {
		spec := domain.RecurrenceSpec{
			StartDate:  rf.Frequency.StartDate,
			EndDate:    rf.Frequency.EndDate,
			Frequency:  domain.Frequency(rf.Frequency.Frequency),
			Time:       rf.Frequency.Time,
			Custom:     domain.CustomRecurrence{Num: rf.Frequency.CustomNum, Unit: domain.Unit(rf.Frequency.CustomUnit)},
			CustomText: rf.Frequency.CustomText,
		}
		copy(spec.Weekdays[:], rf.Frequency.Weekdays)
		r.ReminderFrequency = append(r.ReminderFrequency, domain.ReminderFrequency{
			Method:      rf.Method,
			Frequency:   spec,
			Occurrences: rf.Occurrences,
		})
	}
	return r
}
