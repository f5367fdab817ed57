package auth

import (
	"github.com/liminara/storefront/internal/users"
)

// RequestOTPRequest asks for a passcode to be sent to an email or phone.
type RequestOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
}

// VerifyOTPRequest exchanges the passcode for a session.
type VerifyOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Code       string `json:"code" validate:"required,numeric,min=4,max=10"`
}

// RefreshRequest carries the refresh token paired with the presented access token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LoginResponse contains the tokens and profile produced by a successful verification.
type LoginResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	User         *users.UserDTO `json:"user"`
	Created      bool           `json:"created"`
}

// TokenResponse is returned by a refresh.
type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
