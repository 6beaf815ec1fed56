// services/sms_service.go
package services

import (
	"context"
	"fmt"
	"safegate/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// FormatSMS renders the text message sent to responders.
func FormatSMS(payload models.NotificationPayload) string {
	return fmt.Sprintf("🚨 %s - Location: %s", payload.TypeName, payload.MapLink)
}

type TwilioSMSSender struct {
	client     *twilio.RestClient
	from       string
	recipients []string
}

func NewTwilioSMSSender(accountSID, authToken, from string, recipients []string) *TwilioSMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMSSender{
		client:     client,
		from:       from,
		recipients: recipients,
	}
}

func (s *TwilioSMSSender) Send(ctx context.Context, payload models.NotificationPayload) error {
	body := FormatSMS(payload)
	return sendToAll(s.recipients, func(to string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(s.from)
		params.SetBody(body)

		resp, err := s.client.Api.CreateMessage(params)
		if err != nil {
			return fmt.Errorf("twilio: %w", err)
		}
		if resp.Sid != nil {
			logrus.Infof("SMS sent to %s (sid %s)", to, *resp.Sid)
		}
		return nil
	})
}

// SNSSMSSender publishes transactional SMS through AWS SNS.
type SNSSMSSender struct {
	client     *sns.Client
	recipients []string
}

func NewSNSSMSSender(ctx context.Context, region string, recipients []string) (*SNSSMSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SNSSMSSender{
		client:     sns.NewFromConfig(cfg),
		recipients: recipients,
	}, nil
}

func (s *SNSSMSSender) Send(ctx context.Context, payload models.NotificationPayload) error {
	body := FormatSMS(payload)
	return sendToAll(s.recipients, func(to string) error {
		_, err := s.client.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(to),
			Message:     aws.String(body),
			MessageAttributes: map[string]snsTypes.MessageAttributeValue{
				"AWS.SNS.SMS.SMSType": {
					DataType:    aws.String("String"),
					StringValue: aws.String("Transactional"),
				},
			},
		})
		if err != nil {
			return fmt.Errorf("sns: %w", err)
		}
		return nil
	})
}
