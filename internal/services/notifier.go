package services

import (
	"fmt"

	pubnub "github.com/pubnub/go/v7"
)

// Notifier pushes payment progress to the customer's UI channel.
type Notifier interface {
	PaymentUpdate(userID string, message map[string]any)
}

// PubNubNotifier publishes to the per-user PubNub channel the frontend
// subscribes to.
type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pn: pn}
}

func (n *PubNubNotifier) PaymentUpdate(userID string, message map[string]any) {
	channel := fmt.Sprintf("user-%s", userID)
	n.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
}

// NoopNotifier is used when no PubNub keys are configured.
type NoopNotifier struct{}

func (NoopNotifier) PaymentUpdate(string, map[string]any) {}
