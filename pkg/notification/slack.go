// Package notification wires operator-facing alerts for the foundation
// agents (spec.md §4.J): a high-risk fix rollback or a learning-derived
// improvement recommendation reaches a human over Slack rather than
// being silently logged.
package notification

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/sirupsen/logrus"
)

// Notifier delivers an operator-facing alert.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// SlackNotifier posts alerts to a fixed channel via the Slack Web API.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  *logrus.Logger
}

// NewSlackNotifier builds a Notifier posting to channel using token.
func NewSlackNotifier(token, channel string, logger *logrus.Logger) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
		logger:  logger,
	}
}

// Notify posts subject/body as a single Slack message.
func (n *SlackNotifier) Notify(ctx context.Context, subject, body string) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(fmt.Sprintf("*%s*\n%s", subject, body), false),
	)
	if err != nil {
		n.logger.WithError(err).WithField("channel", n.channel).Warn("slack notification failed")
		return err
	}
	return nil
}

// NoopNotifier discards every notification; used where no Slack token
// is configured so callers don't need a nil check.
type NoopNotifier struct{}

// Notify always succeeds without sending anything.
func (NoopNotifier) Notify(context.Context, string, string) error { return nil }

var (
	_ Notifier = (*SlackNotifier)(nil)
	_ Notifier = NoopNotifier{}
)
