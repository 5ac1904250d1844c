package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
)

// sesAPI is the subset of the SES v2 client used by the transport.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

// sesRejectCodes are API error codes that mean SES refused this message.
var sesRejectCodes = map[string]bool{
	"MessageRejected":                    true,
	"MailFromDomainNotVerifiedException": true,
	"BadRequestException":                true,
}

// SES sends raw MIME messages through the AWS SES v2 SendEmail API.
type SES struct {
	client sesAPI
	region string
}

// NewSES loads the default AWS credential chain for region.
func NewSES(ctx context.Context, region string) (*SES, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newSESWithClient(sesv2.NewFromConfig(cfg), cfg.Region), nil
}

func newSESWithClient(client sesAPI, region string) *SES {
	return &SES{client: client, region: region}
}

func (s *SES) GetName() string { return "ses" }

// Send composes msg and submits it as raw content so attachments survive.
func (s *SES) Send(ctx context.Context, msg *Message) (*Result, error) {
	raw, err := Compose(msg, time.Now())
	if err != nil {
		return nil, &Error{Provider: "ses", Op: "compose", Err: err}
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && sesRejectCodes[apiErr.ErrorCode()] {
			return rejected(apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()), nil
		}
		return nil, &Error{Provider: "ses", Op: "send email", Err: err}
	}

	res := sent(aws.ToString(out.MessageId))
	res.Metadata = map[string]string{"region": s.region}
	return res, nil
}

// HealthCheck calls GetAccount and fails if sending is disabled.
func (s *SES) HealthCheck(ctx context.Context) error {
	out, err := s.client.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		return &Error{Provider: "ses", Op: "get account", Err: err}
	}
	if !out.SendingEnabled {
		return &Error{Provider: "ses", Op: "get account", Err: errors.New("sending is disabled for this account")}
	}
	return nil
}
