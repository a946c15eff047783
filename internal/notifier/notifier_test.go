package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"user_service/internal/config"
	"user_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to, subject, body string
}

type fakeSender struct {
	mails []sent
	err   error
}

func (f *fakeSender) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.mails = append(f.mails, sent{to, subject, body})
	return nil
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRender(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		purpose string
		subject string
		snippet string
	}{
		{models.PurposeAccountRegistered, "Welcome", "was created"},
		{models.PurposeSessionsRevoked, "You were signed out everywhere", "All sessions"},
		{models.PurposeRefreshReuse, "Suspicious sign-in activity", "already used"},
		{models.PurposeAccountDisabled, "Your account was disabled", "disabled your account"},
	}

	for _, tt := range tests {
		t.Run(tt.purpose, func(t *testing.T) {
			subject, body, ok := Render(models.Message{
				Email: "ada@example.com", Name: "Ada", Purpose: tt.purpose, OccurredAt: at,
			})

			require.True(t, ok)
			assert.Equal(t, tt.subject, subject)
			assert.Contains(t, body, "Hello Ada")
			assert.Contains(t, body, tt.snippet)
			assert.Contains(t, body, "Sun, 01 Mar 2026 10:00:00 UTC")
		})
	}

	_, _, ok := Render(models.Message{Purpose: "password_reset"})
	assert.False(t, ok)
}

func TestHandle(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	n := New(discard, s)
	ctx := context.Background()

	require.NoError(t, n.Handle(ctx, models.Message{Email: "ada@example.com", Purpose: models.PurposeSessionsRevoked}))
	require.Len(t, s.mails, 1)
	assert.Equal(t, "ada@example.com", s.mails[0].to)
	assert.Contains(t, s.mails[0].body, "Hello there")

	require.NoError(t, n.Handle(ctx, models.Message{Email: "ada@example.com", Purpose: "unknown"}))
	assert.Len(t, s.mails, 1)
}

func TestHandle_SendError(t *testing.T) {
	t.Parallel()

	n := New(discard, &fakeSender{err: errors.New("smtp down")})

	err := n.Handle(context.Background(), models.Message{Email: "ada@example.com", Purpose: models.PurposeAccountDisabled})
	assert.Error(t, err)
}

func TestNewMailer(t *testing.T) {
	t.Parallel()

	m := NewMailer(config.SMTP{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p", From: "no-reply@example.com"})

	assert.Equal(t, "smtp.example.com", m.dialer.Host)
	assert.Equal(t, 2525, m.dialer.Port)
	assert.Equal(t, "no-reply@example.com", m.from)
}
