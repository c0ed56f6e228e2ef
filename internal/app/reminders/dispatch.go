package reminders

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// DefaultLinkTTL is how long the links in a reminder email stay valid.
const DefaultLinkTTL = 5 * time.Hour

var emailTemplate = template.Must(template.New("reminder").Parse(`{{.Body}}
<style>
  .chat-link { padding: 5px; text-decoration: none; font-weight: bold; border-radius: 10px; display: inline-block; }
  .chat-link-chatted { background-color: #edf3ff; color: #2d60cf; }
  .chat-link-chatted:hover { background-color: #b0c4de; color: #1e3a8a; }
  .chat-link-not-chatted { background-color: #f0edff; color: #5441c4; }
  .chat-link-not-chatted:hover { background-color: #c0b6ff; color: #3b2a8a; }
</style>
<a href="{{.ChattedURL}}" class="chat-link chat-link-chatted">Yes, I have spoken to them; let's chat!</a>
<a href="{{.NotChattedURL}}" class="chat-link chat-link-not-chatted">No, I have not spoken to them, but I'd like some assistance!</a>`))

type emailData struct {
	Body          template.HTML
	ChattedURL    string
	NotChattedURL string
}

// Dispatcher turns a fired occurrence into a reminder email.
type Dispatcher struct {
	users   domain.UserStore
	content domain.ContentGenerator
	links   domain.LinkIssuer
	mailer  domain.Mailer
	baseURL string
	linkTTL time.Duration
	metrics *observability.Metrics
}

func NewDispatcher(users domain.UserStore, content domain.ContentGenerator, links domain.LinkIssuer, mailer domain.Mailer, baseURL string, linkTTL time.Duration, metrics *observability.Metrics) *Dispatcher {
	if linkTTL <= 0 {
		linkTTL = DefaultLinkTTL
	}
	return &Dispatcher{
		users:   users,
		content: content,
		links:   links,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		linkTTL: linkTTL,
		metrics: metrics,
	}
}

// Dispatch re-reads the relation, generates the body, mints both deep links and
// sends one email. Relations deleted or disabled since arming are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, occ domain.Occurrence) (err error) {
	defer func() { d.metrics.IncDispatch(err) }()
	ctx = observability.WithUserID(ctx, string(occ.UserID))
	log := observability.LoggerFromContext(ctx).With("relation_id", occ.RelationID)

	user, err := d.users.FindUser(ctx, occ.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	i := user.FindRelation(occ.RelationID)
	if i < 0 {
		log.Info("relation gone, reminder skipped")
		return nil
	}
	rel := user.Relations[i]
	if !rel.ReminderEnabled {
		log.Info("reminders disabled, reminder skipped")
		return nil
	}

	body, err := d.content.GenerateNotification(ctx, NotificationContext(user, rel, occ.Method))
	if err != nil {
		return fmt.Errorf("generate body: %w", err)
	}

	chatted, err := d.link(user, body+" Answer: Yes, I have chatted with "+rel.Name+" and would like to talk more about it")
	if err != nil {
		return err
	}
	notChatted, err := d.link(user, body+" Answer: No, I have not chatted with "+rel.Name+" and would like assistance such as suggestions of what to talk about")
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, emailData{Body: template.HTML(body), ChattedURL: chatted, NotChattedURL: notChatted}); err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	n := domain.Notification{
		To:      user.Email,
		Subject: fmt.Sprintf("Reminder to Connect with %s!", rel.Name),
		Body:    buf.String(),
		IsHTML:  true,
	}
	if err := d.mailer.Send(ctx, n); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	log.Info("reminder email sent", "to", user.Email, "method", occ.Method)
	return nil
}

func (d *Dispatcher) link(user *domain.User, prompt string) (string, error) {
	token, err := d.links.Issue(domain.LinkClaims{
		UserID: user.ID,
		Email:  user.Email,
		Prompt: strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(prompt),
	}, d.linkTTL)
	if err != nil {
		return "", fmt.Errorf("issue link: %w", err)
	}
	return d.baseURL + "/?token=" + url.QueryEscape(token), nil
}

// NotificationContext collects what the content generator is told about a reminder.
func NotificationContext(user *domain.User, rel domain.Relation, method string) domain.NotificationContext {
	return domain.NotificationContext{
		RelationName:     rel.Name,
		MethodOfContact:  method,
		Pronouns:         rel.Pronouns,
		RelationType:     rel.RelationshipType,
		Overview:         rel.Overview,
		ContactHistory:   rel.ContactHistory,
		ContactFrequency: rel.ContactFrequency,
		UserName:         user.DisplayName(),
	}
}
