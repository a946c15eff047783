// Package notifier turns auth events read from the broker into mail.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"user_service/internal/lib/logger/sl"
	"user_service/internal/models"
)

type Sender interface {
	Send(to, subject, body string) error
}

type Notifier struct {
	log    *slog.Logger
	sender Sender
}

func New(log *slog.Logger, sender Sender) *Notifier {
	return &Notifier{
		log:    log.With(slog.String("component", "notifier")),
		sender: sender,
	}
}

// * Handle sends the mail for msg. Unknown purposes are dropped, not retried.
func (n *Notifier) Handle(ctx context.Context, msg models.Message) error {
	const op = "notifier.Handle"

	log := n.log.With(
		slog.String("op", op),
		slog.String("purpose", msg.Purpose),
	)

	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, ok := Render(msg)
	if !ok {
		log.Warn("unknown message purpose, dropping")
		return nil
	}

	if err := n.sender.Send(msg.Email, subject, body); err != nil {
		log.Error("failed to send mail", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("mail sent")

	return nil
}

// Render builds the subject and body for msg.
func Render(msg models.Message) (subject, body string, ok bool) {
	name := msg.Name
	if name == "" {
		name = "there"
	}

	when := msg.OccurredAt
	if when.IsZero() {
		when = time.Now()
	}
	stamp := when.UTC().Format(time.RFC1123)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)

	switch msg.Purpose {
	case models.PurposeAccountRegistered:
		subject = "Welcome"
		fmt.Fprintf(&b, "Your account was created on %s.\n", stamp)
	case models.PurposeSessionsRevoked:
		subject = "You were signed out everywhere"
		fmt.Fprintf(&b, "All sessions of your account were ended on %s.\n", stamp)
	case models.PurposeRefreshReuse:
		subject = "Suspicious sign-in activity"
		fmt.Fprintf(&b, "A session token of your account that was already used was presented again on %s.\n", stamp)
		b.WriteString("If this was not you, sign out of all sessions and change your password.\n")
	case models.PurposeAccountDisabled:
		subject = "Your account was disabled"
		fmt.Fprintf(&b, "An administrator disabled your account on %s. All sessions were ended.\n", stamp)
	default:
		return "", "", false
	}

	if msg.Detail != "" {
		fmt.Fprintf(&b, "\n%s\n", msg.Detail)
	}

	return subject, b.String(), true
}
