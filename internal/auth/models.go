package auth

import "time"

// Session is an organizer's signed-in browser session. One per organizer.
type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;unique" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

// Organizer is a dashboard account. Reporters never sign in.
type Organizer struct {
	UserID         string    `gorm:"primaryKey" json:"user_id"`
	Username       string    `gorm:"not null;uniqueIndex" json:"username"`
	Password       string    `json:"password,omitempty" gorm:"-"`
	HashedPassword string    `json:"-"`
	Role           string    `gorm:"not null;default:'organizer'" json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	Session        Session   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string   { return "crowdshield_auth.sessions" }
func (Organizer) TableName() string { return "crowdshield_auth.organizers" }
