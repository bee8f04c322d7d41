package auth

import (
	"github.com/CrowdShield/CS-Backend/internal/db"
	"go.uber.org/zap"
)

func Init() {
	if err := db.EnsureSchema(db.DB, "crowdshield_auth"); err != nil {
		zap.L().Fatal("Failed to ensure schema crowdshield_auth", zap.Error(err))
	}

	if err := db.DB.AutoMigrate(&Organizer{}, &Session{}); err != nil {
		zap.L().Fatal("Failed to auto-migrate auth tables", zap.Error(err))
	}
}
