package reports

import (
	"github.com/CrowdShield/CS-Backend/internal/db"
	"go.uber.org/zap"
)

func Init() {
	if err := db.EnsureSchema(db.DB, "crowdshield"); err != nil {
		zap.L().Fatal("Failed to ensure schema crowdshield", zap.Error(err))
	}

	if err := db.DB.AutoMigrate(&Report{}); err != nil {
		zap.L().Fatal("Failed to auto-migrate reports table", zap.Error(err))
	}
}
