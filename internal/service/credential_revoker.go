package service

import (
	"context"
)

type RevocationReport struct {
	Sessions     int64 `json:"sessions"`
	AccessTokens int   `json:"access_tokens"`
}

// CredentialRevoker invalidates every credential a user holds: sessions are
// revoked, registered access tokens are blacklisted and then deregistered.
type CredentialRevoker struct {
	sessions  *SessionService
	registry  *TokenRegistry
	blacklist *Blacklist
}

func NewCredentialRevoker(sessions *SessionService, registry *TokenRegistry, blacklist *Blacklist) *CredentialRevoker {
	return &CredentialRevoker{sessions: sessions, registry: registry, blacklist: blacklist}
}

func (c *CredentialRevoker) RevokeAll(ctx context.Context, userID string) (RevocationReport, error) {
	var report RevocationReport
	n, err := c.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return report, err
	}
	report.Sessions = n

	tokens, err := c.registry.ListForUser(ctx, userID)
	if err != nil {
		return report, err
	}
	for _, t := range tokens {
		if err := c.blacklist.Add(ctx, t.AccessToken); err != nil {
			return report, err
		}
		report.AccessTokens++
	}
	if _, err := c.registry.RevokeAllForUser(ctx, userID); err != nil {
		return report, err
	}
	return report, nil
}
