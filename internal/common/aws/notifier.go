// internal/common/aws/notifier.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	appconfig "command-pipeline/internal/common/config"
	apperrors "command-pipeline/internal/common/errors"
	"command-pipeline/internal/models"
)

// Notifier delivers notifications over SNS (sms) and SES (email). A nil
// client means the channel is disabled.
type Notifier struct {
	sms   *SNSClient
	email *SESClient
}

func NewNotifier(sms *SNSClient, email *SESClient) *Notifier {
	return &Notifier{sms: sms, email: email}
}

// LoadConfig resolves AWS credentials for the configured region.
func LoadConfig(ctx context.Context, region string) (awssdk.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// NewNotifierFromConfig builds clients for the channels enabled in cfg.
func NewNotifierFromConfig(awsCfg awssdk.Config, cfg appconfig.IntegrationConfig) *Notifier {
	n := &Notifier{}
	if cfg.AWS.SNS.Enabled {
		n.sms = NewSNSClient(awsCfg, cfg.AWS.SNS.DefaultSMSSenderID)
	}
	if cfg.AWS.SES.Enabled {
		n.email = NewSESClient(awsCfg, cfg.AWS.SES.FromEmail)
	}
	return n
}

// Send delivers one notification and returns the provider message id.
func (n *Notifier) Send(ctx context.Context, msg models.Notification) (string, error) {
	switch msg.Channel {
	case models.NotifySMS:
		if n.sms == nil {
			return "", apperrors.NewNotificationSendFailedError(string(msg.Channel), fmt.Errorf("sms channel disabled"))
		}
		id, err := n.sms.SendSMS(ctx, msg.Recipient, msg.Message)
		if err != nil {
			return "", apperrors.NewNotificationSendFailedError(string(msg.Channel), err)
		}
		return id, nil

	case models.NotifyEmail:
		if n.email == nil {
			return "", apperrors.NewNotificationSendFailedError(string(msg.Channel), fmt.Errorf("email channel disabled"))
		}
		subject := msg.Subject
		if subject == "" {
			subject = "Service update"
		}
		id, err := n.email.SendEmail(ctx, msg.Recipient, subject, msg.Message)
		if err != nil {
			return "", apperrors.NewNotificationSendFailedError(string(msg.Channel), err)
		}
		return id, nil
	}
	return "", apperrors.NewNotificationSendFailedError(string(msg.Channel), fmt.Errorf("unknown channel"))
}

// Alerter publishes operational alerts to one SNS topic.
type Alerter struct {
	sns      *SNSClient
	topicARN string
}

func NewAlerter(sns *SNSClient, topicARN string) *Alerter {
	return &Alerter{sns: sns, topicARN: topicARN}
}

func (a *Alerter) Alert(ctx context.Context, subject, message string) error {
	if a == nil || a.sns == nil || a.topicARN == "" {
		return nil
	}
	return a.sns.PublishAlert(ctx, a.topicARN, subject, message)
}
