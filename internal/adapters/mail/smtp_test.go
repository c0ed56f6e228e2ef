package mail

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

func TestMessage(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "amika@example.com"})
	require.NoError(t, err)

	msg, err := m.Message(domain.Notification{
		To:      "ada@example.com",
		Subject: "Reminder to Connect with Jane!",
		Body:    "<p>Hi</p>",
		IsHTML:  true,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Subject: Reminder to Connect with Jane!")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "<ada@example.com>")
}

func TestMessageRejectsBadRecipient(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "amika@example.com"})
	require.NoError(t, err)

	_, err = m.Message(domain.Notification{To: "not an address"})
	assert.Error(t, err)
}

func TestNewSMTPMailerValidates(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{From: "amika@example.com"})
	assert.Error(t, err)
}
