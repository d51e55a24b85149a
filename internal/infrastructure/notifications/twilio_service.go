package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/you/otpsvc/domain"
)

const defaultTemplate = "Your verification code is: {code}. Valid for {minutes} minutes."

// TwilioNotifier implements domain.Notifier. SMS goes through Twilio;
// the email channel is mocked to stdout until a mail provider is wired.
type TwilioNotifier struct {
	client     *twilio.RestClient
	fromNumber string
	template   string
}

// NewTwilioNotifier creates a new Twilio-backed notifier
func NewTwilioNotifier(accountSID, authToken, fromNumber, template string) domain.Notifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	if template == "" {
		template = defaultTemplate
	}

	return &TwilioNotifier{
		client:     client,
		fromNumber: fromNumber,
		template:   template,
	}
}

// Send implements domain.Notifier
func (t *TwilioNotifier) Send(_ context.Context, req *domain.DeliveryRequest) (*domain.DeliveryResult, error) {
	message := t.renderMessage(req)

	switch req.Channel {
	case domain.ChannelSMS:
		return t.sendSMS(req.Destination, message)
	case domain.ChannelEmail:
		// Email not implemented with Twilio
		fmt.Printf("[MOCK EMAIL] To: %s, Subject: Verification code, Body: %s\n", req.Destination, message)
		return &domain.DeliveryResult{Acked: true}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported channel %s", domain.ErrDeliveryFailed, req.Channel)
	}
}

func (t *TwilioNotifier) sendSMS(to, message string) (*domain.DeliveryResult, error) {
	// If credentials are not configured, log instead of sending
	if t.fromNumber == "" {
		fmt.Printf("[MOCK SMS] To: %s, Message: %s\n", to, message)
		return &domain.DeliveryResult{Acked: true}, nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	result := &domain.DeliveryResult{Acked: true}
	if resp.Sid != nil {
		result.ProviderID = *resp.Sid
	}
	return result, nil
}

func (t *TwilioNotifier) renderMessage(req *domain.DeliveryRequest) string {
	minutes := int(time.Until(req.ExpiresAt).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	msg := strings.ReplaceAll(t.template, "{code}", req.Code)
	msg = strings.ReplaceAll(msg, "{minutes}", fmt.Sprintf("%d", minutes))
	msg = strings.ReplaceAll(msg, "{purpose}", formatPurpose(req.Purpose))
	return msg
}

func formatPurpose(p domain.Purpose) string {
	return strings.ReplaceAll(string(p), "_", " ")
}
