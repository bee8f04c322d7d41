package seeds

import (
	"errors"
	"fmt"

	"github.com/CrowdShield/CS-Backend/internal/auth"
	"github.com/CrowdShield/CS-Backend/internal/db"
	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"go.uber.org/zap"
)

// SeedAdmin creates the first admin account. An existing username is left
// untouched.
func SeedAdmin(username, password string) error {
	o, err := auth.CreateOrganizer(db.DB, username, password, middleware.RoleAdmin)
	if errors.Is(err, auth.ErrUsernameTaken) {
		zap.L().Info("admin exists, skipping", zap.String("username", username))
		return nil
	}
	if err != nil {
		return fmt.Errorf("seeding admin %s: %w", username, err)
	}

	zap.L().Info("seeded admin", zap.String("username", o.Username), zap.String("user_id", o.UserID))
	return nil
}
