package events

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// Notifier posts short operational notices to a Slack webhook. An empty
// webhook URL disables it.
type Notifier struct {
	webhookURL string
	log        *logrus.Logger
}

func NewNotifier(webhookURL string, log *logrus.Logger) *Notifier {
	return &Notifier{webhookURL: webhookURL, log: log}
}

func (n *Notifier) Notify(format string, args ...interface{}) {
	if n == nil || n.webhookURL == "" {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if err := slack.PostWebhook(n.webhookURL, &slack.WebhookMessage{Text: msg}); err != nil {
		n.log.WithError(err).Warn("Slack notification failed")
	}
}
