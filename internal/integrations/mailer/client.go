package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charsetUTF8 = "UTF-8"

// sesAPI is the minimal AWS SES interface required by Client.
// *ses.Client from aws-sdk-go-v2 satisfies this interface.
type sesAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Client sends HTML mail through SES from a fixed verified source address.
type Client struct {
	api  sesAPI
	from string
}

// New creates a mailer Client sending from the given verified address.
func New(api sesAPI, from string) (*Client, error) {
	if api == nil {
		return nil, errors.New("mailer: api must not be nil")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("mailer: from address must not be empty")
	}
	return &Client{api: api, from: from}, nil
}

// Send dispatches one HTML email to a single recipient.
func (c *Client) Send(ctx context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("mailer: Send: to address must not be empty")
	}
	_, err := c.api.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(c.from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String(charsetUTF8)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String(charsetUTF8)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("mailer: Send: %w", err)
	}
	return nil
}
