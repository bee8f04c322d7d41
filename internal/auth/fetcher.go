package auth

import (
	"github.com/CrowdShield/CS-Backend/internal/db"
	"github.com/CrowdShield/CS-Backend/internal/utils"
)

// SessionInfo looks sessions up in the database for the session middleware.
type SessionInfo struct{}

func (si SessionInfo) FindSessionByID(id string) (utils.SessionData, error) {
	var session Session

	err := db.DB.First(&session, "session_id = ?", id).Error
	if err != nil {
		return utils.SessionData{}, err
	}

	var organizer Organizer
	if err := db.DB.Select("role").First(&organizer, "user_id = ?", session.UserID).Error; err != nil {
		return utils.SessionData{}, err
	}

	return utils.SessionData{
		UserID:    session.UserID,
		Role:      organizer.Role,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
