package domain

import "time"

// ActiveAccessToken tracks an issued access token so logout-all can find it.
// It is never consulted for authorization.
type ActiveAccessToken struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"size:36;index;not null" json:"user_id"`
	AccessToken string    `gorm:"size:512;uniqueIndex;not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `gorm:"index;not null" json:"expires_at"`
}

type BlacklistedToken struct {
	ID            uint      `gorm:"primaryKey"`
	Token         string    `gorm:"size:512;uniqueIndex;not null"`
	BlacklistedAt time.Time `gorm:"index;not null"`
}

// TokenLog is the append-only audit trail used by anomaly detection.
type TokenLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *string   `gorm:"size:36;index:idx_token_logs_user_action_time,priority:1" json:"user_id"`
	Username  *string   `gorm:"size:50" json:"username"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	Action    string    `gorm:"size:50;not null;index:idx_token_logs_user_action_time,priority:2" json:"action"`
	Timestamp time.Time `gorm:"not null;index;index:idx_token_logs_user_action_time,priority:3" json:"timestamp"`
}

type TokenUsageLog struct {
	ID          uint      `gorm:"primaryKey"`
	Token       string    `gorm:"size:512;not null;index:idx_token_time,priority:1"`
	RequestedAt time.Time `gorm:"not null;index;index:idx_token_time,priority:2"`
}

func (TokenUsageLog) TableName() string { return "token_usage_log" }
