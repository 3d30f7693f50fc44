package service

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type twilioMessages interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSMSSender delivers operator alerts by SMS.
type TwilioSMSSender struct {
	api        twilioMessages
	fromNumber string
	logger     *zap.Logger
}

func NewTwilioSMSSender(accountSID, authToken, fromNumber string, logger *zap.Logger) *TwilioSMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})
	return &TwilioSMSSender{api: client.Api, fromNumber: fromNumber, logger: logger}
}

func (s *TwilioSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.HasPrefix(to, "+") {
		s.logger.Warn("destination number is not E.164; SMS may fail", zap.String("to", to))
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromNumber)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return errors.Wrapf(err, "twilio send to %s", to)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Info("sms sent via twilio", zap.String("to", to), zap.String("sid", sid))
	return nil
}
