package mailer

import (
	"context"
	"fmt"

	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2"
)

// Gmail submission endpoint used by the OAuth2 transport.
const (
	GmailHost = "smtp.gmail.com"
	GmailPort = 465
)

// GoogleEndpoint is Google's OAuth 2.0 endpoint.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// GmailScopes are requested when minting a refresh token.
var GmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.send",
	"https://mail.google.com/",
}

// GoogleConfig returns the OAuth2 client configuration for Gmail.
func GoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     GoogleEndpoint,
		RedirectURL:  redirectURL,
		Scopes:       GmailScopes,
	}
}

// OAuth2Auth returns an Auth func that exchanges refreshToken for an access
// token on every session and authenticates with XOAUTH2.
func OAuth2Auth(cfg *oauth2.Config, username, refreshToken string) func(context.Context) (sasl.Client, error) {
	return func(ctx context.Context) (sasl.Client, error) {
		tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return nil, fmt.Errorf("refresh access token: %w", err)
		}
		return NewXOAuth2Client(username, tok.AccessToken), nil
	}
}

// xoauth2Client implements the XOAUTH2 SASL mechanism used by Gmail.
type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2Client returns a sasl.Client for XOAUTH2.
func NewXOAuth2Client(username, accessToken string) sasl.Client {
	return &xoauth2Client{username: username, token: accessToken}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := "user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01"
	return "XOAUTH2", []byte(ir), nil
}

// Next answers the server's JSON error challenge with an empty response so
// the server completes the exchange with its final error reply.
func (c *xoauth2Client) Next([]byte) ([]byte, error) {
	return []byte{}, nil
}
