package lexbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2"
)

const defaultLocaleID = "en_US"

// lexAPI is the minimal Lex V2 runtime interface required by Client.
// *lexruntimev2.Client from aws-sdk-go-v2 satisfies this interface.
type lexAPI interface {
	RecognizeText(ctx context.Context, in *lexruntimev2.RecognizeTextInput, optFns ...func(*lexruntimev2.Options)) (*lexruntimev2.RecognizeTextOutput, error)
}

// Client sends user utterances to one Lex V2 bot alias.
type Client struct {
	api      lexAPI
	botID    string
	aliasID  string
	localeID string
}

// New creates a lexbot Client. An empty localeID falls back to en_US.
func New(api lexAPI, botID, aliasID, localeID string) (*Client, error) {
	if api == nil {
		return nil, errors.New("lexbot: api must not be nil")
	}
	if strings.TrimSpace(botID) == "" {
		return nil, errors.New("lexbot: bot ID must not be empty")
	}
	if strings.TrimSpace(aliasID) == "" {
		return nil, errors.New("lexbot: bot alias ID must not be empty")
	}
	if strings.TrimSpace(localeID) == "" {
		localeID = defaultLocaleID
	}
	return &Client{api: api, botID: botID, aliasID: aliasID, localeID: localeID}, nil
}

// RecognizeText forwards one utterance under the given session and returns
// the bot's reply texts in order. Replies without content are skipped.
func (c *Client) RecognizeText(ctx context.Context, sessionID, text string) ([]string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("lexbot: RecognizeText: session ID must not be empty")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("lexbot: RecognizeText: text must not be empty")
	}

	out, err := c.api.RecognizeText(ctx, &lexruntimev2.RecognizeTextInput{
		BotId:      aws.String(c.botID),
		BotAliasId: aws.String(c.aliasID),
		LocaleId:   aws.String(c.localeID),
		SessionId:  aws.String(sessionID),
		Text:       aws.String(text),
	})
	if err != nil {
		return nil, fmt.Errorf("lexbot: RecognizeText: %w", err)
	}

	replies := make([]string, 0, len(out.Messages))
	for _, m := range out.Messages {
		if m.Content == nil || *m.Content == "" {
			continue
		}
		replies = append(replies, *m.Content)
	}
	return replies, nil
}
