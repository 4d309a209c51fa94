package sessions

import "time"

// Session is a bearer credential. The token is the secret the client holds;
// last_used_at drives the inactivity expiry check and created_at drives the
// coarser purge sweep.
type Session struct {
	ID         uint       `gorm:"column:id;primaryKey"`
	UserID     uint       `gorm:"column:user_id;not null;index"`
	Token      string     `gorm:"column:token;size:64;not null;uniqueIndex"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing sessions.
func (Session) TableName() string {
	return "sessions"
}

// ExpiredAt reports whether the session's inactivity window has elapsed at
// the given instant. A session that was never touched counts as expired.
func (s Session) ExpiredAt(now time.Time, window time.Duration) bool {
	if s.LastUsedAt == nil {
		return true
	}
	return now.Sub(*s.LastUsedAt) > window
}
