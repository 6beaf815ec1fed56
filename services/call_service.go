package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"safegate/models"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioCallSender rings the nearest responder desk and reads the alert.
type TwilioCallSender struct {
	client *twilio.RestClient
	from   string
	to     string
}

func NewTwilioCallSender(accountSID, authToken, from, to string) *TwilioCallSender {
	return &TwilioCallSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
		to:   to,
	}
}

// CallScript builds the TwiML read out on the emergency call.
func CallScript(payload models.NotificationPayload) string {
	var spoken strings.Builder
	fmt.Fprintf(&spoken, "SafeGate emergency alert. %s reported by %s.", payload.TypeName, payload.Reporter.Name)
	if payload.Address != "" {
		fmt.Fprintf(&spoken, " Near %s.", payload.Address)
	}
	fmt.Fprintf(&spoken, " %s. Location details have been sent by text message.", payload.Description)

	var escaped strings.Builder
	xml.EscapeText(&escaped, []byte(spoken.String()))
	return fmt.Sprintf(`<Response><Say voice="alice" loop="2">%s</Say></Response>`, escaped.String())
}

func (s *TwilioCallSender) Send(ctx context.Context, payload models.NotificationPayload) error {
	if s.to == "" {
		return errors.New("no responder number configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logrus.Infof("Initiating emergency call to nearest responder for %s", payload.ReportID)

	params := &twilioApi.CreateCallParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetTwiml(CallScript(payload))

	resp, err := s.client.Api.CreateCall(params)
	if err != nil {
		return fmt.Errorf("twilio call: %w", err)
	}
	if resp.Sid != nil {
		logrus.Infof("Emergency call placed (sid %s)", *resp.Sid)
	}
	return nil
}
