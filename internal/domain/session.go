package domain

import "time"

// Session backs one refresh token. Rows are only ever flipped to revoked or
// hard-deleted by the expiry sweep.
type Session struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"size:36;index;not null" json:"user_id"`
	RefreshToken string    `gorm:"size:512;uniqueIndex;not null" json:"-"`
	IPAddress    string    `gorm:"size:64" json:"ip_address"`
	UserAgent    string    `gorm:"size:255" json:"user_agent"`
	ExpiresAt    time.Time `gorm:"index;not null" json:"expires_at"`
	Revoked      bool      `gorm:"not null;index" json:"revoked"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Session) IsValidAt(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
