package enums

import (
	"fmt"
	"strings"
)

// OTPChannel is the delivery route for a one-time passcode.
type OTPChannel string

const (
	OTPChannelSMS   OTPChannel = "sms"
	OTPChannelEmail OTPChannel = "email"
)

// String implements fmt.Stringer.
func (c OTPChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known OTPChannel.
func (c OTPChannel) IsValid() bool {
	return c == OTPChannelSMS || c == OTPChannelEmail
}

// ChannelForIdentifier picks email for anything containing '@' and sms otherwise.
func ChannelForIdentifier(identifier string) OTPChannel {
	if strings.Contains(identifier, "@") {
		return OTPChannelEmail
	}
	return OTPChannelSMS
}

// ParseOTPChannel converts raw input into an OTPChannel.
func ParseOTPChannel(value string) (OTPChannel, error) {
	c := OTPChannel(strings.ToLower(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid otp channel %q", value)
	}
	return c, nil
}
