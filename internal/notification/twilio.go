package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioNotifier sends SMS messages through Twilio.
type TwilioNotifier struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioNotifier builds an SMS notifier. All three credentials are required.
func NewTwilioNotifier(accountSID, authToken, fromNumber string) (*TwilioNotifier, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil, errors.New("twilio account sid, auth token and from number are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{client: client, fromNumber: fromNumber}, nil
}

// Send delivers message.Body to message.Destination, an E.164 number with or without "+".
func (t *TwilioNotifier) Send(_ context.Context, message Message) error {
	to := message.Destination
	if !strings.HasPrefix(to, "+") {
		to = "+" + to
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(message.Body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}
