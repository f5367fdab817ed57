package otp

import (
	"context"

	"github.com/liminara/storefront/pkg/enums"
	"github.com/liminara/storefront/pkg/logger"
)

// Sender delivers a passcode to the identifier over the given channel.
type Sender interface {
	Send(ctx context.Context, channel enums.OTPChannel, identifier, code string) error
}

// LogSender writes passcodes to the structured log instead of a gateway. It
// backs local development and the shopper CLI walkthrough.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender returns a sender that logs at info level.
func NewLogSender(logg *logger.Logger) *LogSender {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, channel enums.OTPChannel, identifier, code string) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"channel":    channel.String(),
		"identifier": identifier,
		"code":       code,
	})
	s.logg.Info(ctx, "otp.delivered")
	return nil
}
