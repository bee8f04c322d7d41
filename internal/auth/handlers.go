package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/db"
	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"github.com/CrowdShield/CS-Backend/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const sessionCookieName = "session_id"

// DefaultSessionTTL is used when Handler.TTL is zero.
const DefaultSessionTTL = 6 * time.Hour

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUnknownRole        = errors.New("unknown role")
)

type Handler struct {
	TTL    time.Duration
	Secure bool
}

func (h *Handler) ttl() time.Duration {
	if h.TTL <= 0 {
		return DefaultSessionTTL
	}
	return h.TTL
}

func (h *Handler) sessionCookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
	if h.Secure {
		// the dashboard may be served from another origin
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// CreateOrganizer hashes password and stores a new account.
func CreateOrganizer(d *gorm.DB, username, password, role string) (Organizer, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Organizer{}, ErrMissingCredentials
	}
	if role == "" {
		role = middleware.RoleOrganizer
	}
	if role != middleware.RoleOrganizer && role != middleware.RoleAdmin {
		return Organizer{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	var existing Organizer
	err := d.First(&existing, "username = ?", username).Error
	if err == nil {
		return Organizer{}, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Organizer{}, fmt.Errorf("looking up username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Organizer{}, fmt.Errorf("hashing password: %w", err)
	}

	o := Organizer{
		UserID:         utils.GenerateUUID(),
		Username:       username,
		HashedPassword: string(hashed),
		Role:           role,
	}
	if err := d.Create(&o).Error; err != nil {
		return Organizer{}, fmt.Errorf("creating organizer: %w", err)
	}
	return o, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates an organizer account. Admin only.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	o, err := CreateOrganizer(db.DB, req.Username, req.Password, req.Role)
	switch {
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrUnknownRole):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrUsernameTaken):
		http.Error(w, "Username already taken", http.StatusConflict)
		return
	case err != nil:
		zap.L().Error("register organizer", zap.Error(err))
		http.Error(w, "Failed to register organizer", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]string{
		"user_id":  o.UserID,
		"username": o.Username,
		"role":     o.Role,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return
	}

	var o Organizer
	if err := db.DB.First(&o, "username = ?", strings.TrimSpace(req.Username)).Error; err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(o.HashedPassword), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}

	// one session per organizer; logging in again replaces it
	sessionID := utils.GenerateUUID()
	expires := time.Now().Add(h.ttl())
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", o.UserID).Delete(&Session{}).Error; err != nil {
			return err
		}
		return tx.Create(&Session{SessionID: sessionID, UserID: o.UserID, ExpiresAt: expires}).Error
	})
	if err != nil {
		zap.L().Error("create session", zap.String("user_id", o.UserID), zap.Error(err))
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.sessionCookie(sessionID, expires))
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id":  o.UserID,
		"username": o.Username,
		"role":     o.Role,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
		return
	}

	res := db.DB.Where("session_id = ?", cookie.Value).Delete(&Session{})
	if res.Error != nil {
		zap.L().Error("delete session", zap.Error(res.Error))
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "Couldn't find session", http.StatusUnauthorized)
		return
	}

	expired := h.sessionCookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Logout successful")
}

type MeResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var o Organizer
	if err := db.DB.First(&o, "user_id = ?", userID).Error; err != nil {
		http.Error(w, "Couldn't find organizer", http.StatusNotFound)
		return
	}

	utils.WriteJSON(w, http.StatusOK, MeResponse{UserID: o.UserID, Username: o.Username, Role: o.Role})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		http.Error(w, "Current and new password are required", http.StatusBadRequest)
		return
	}

	var o Organizer
	if err := db.DB.First(&o, "user_id = ?", userID).Error; err != nil {
		http.Error(w, "Couldn't find organizer", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(o.HashedPassword), []byte(req.CurrentPassword)); err != nil {
		http.Error(w, "Invalid current password", http.StatusUnauthorized)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Server error hashing password", http.StatusInternalServerError)
		return
	}
	if err := db.DB.Model(&o).Update("hashed_password", string(hashed)).Error; err != nil {
		zap.L().Error("update password", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Failed to update password", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Password updated")
}
