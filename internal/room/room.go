// Package room mints credentials that let the media worker join a
// real-time audio room on behalf of the agent.
package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

// ErrMissingCredentials is returned when the room server URL, API key or
// API secret is not configured. The daemon cannot serve any session without them.
var ErrMissingCredentials = errors.New("room credentials missing")

// DefaultTokenTTL bounds how long an agent join token stays valid.
const DefaultTokenTTL = 6 * time.Hour

// Credentials identifies the room server and the key pair used to sign tokens.
type Credentials struct {
	URL       string
	APIKey    string
	APISecret string
}

// Issuer signs agent join tokens.
type Issuer struct {
	creds Credentials
	ttl   time.Duration
}

// NewIssuer validates creds and returns an Issuer.
func NewIssuer(creds Credentials) (*Issuer, error) {
	if creds.URL == "" || creds.APIKey == "" || creds.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	return &Issuer{creds: creds, ttl: DefaultTokenTTL}, nil
}

// URL returns the room server URL the media worker should connect to.
func (i *Issuer) URL() string { return i.creds.URL }

// AgentToken returns a signed JWT that grants identity permission to join
// roomName as an agent participant.
func (i *Issuer) AgentToken(roomName, identity string) (string, error) {
	if roomName == "" {
		return "", fmt.Errorf("room name is required")
	}

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
		Agent:    true,
	}

	at := auth.NewAccessToken(i.creds.APIKey, i.creds.APISecret)
	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(identity).
		SetValidFor(i.ttl)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("signing join token: %w", err)
	}
	return token, nil
}
