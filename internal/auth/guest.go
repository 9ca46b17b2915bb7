package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	guestCookie = "mq_guest_id"
	guestPrefix = "guest|"
)

// guestCookieValue binds a guest id to the service secret: "<id>.<hex mac>".
func (a *AuthService) guestCookieValue(userID string) string {
	return userID + "." + hex.EncodeToString(a.guestMAC(userID))
}

func (a *AuthService) guestMAC(userID string) []byte {
	m := hmac.New(sha256.New, a.hmac)
	m.Write([]byte("guest-cookie:" + userID))
	return m.Sum(nil)
}

// guestFromCookie returns the guest id carried by a cookie value, or "" when
// the value is malformed or its mac does not match.
func (a *AuthService) guestFromCookie(value string) string {
	i := strings.LastIndexByte(value, '.')
	if i < 0 {
		return ""
	}
	userID, sig := value[:i], value[i+1:]
	if !strings.HasPrefix(userID, guestPrefix) {
		return ""
	}
	if _, err := uuid.Parse(strings.TrimPrefix(userID, guestPrefix)); err != nil {
		return ""
	}
	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(got, a.guestMAC(userID)) {
		return ""
	}
	return userID
}

// GuestLoginHandler issues student tokens to anonymous quiz takers. A guest
// keeps the same id across logins through a cookie, so their attempt
// history and statistics survive token expiry. The cookie is signed with
// the token secret; an unsigned or tampered cookie gets a fresh id.
func GuestLoginHandler(a *AuthService, secureCookie bool) http.HandlerFunc {
	type out struct {
		AccessToken string `json:"access_token"`
		Username    string `json:"username"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := ""
		if c, err := r.Cookie(guestCookie); err == nil {
			userID = a.guestFromCookie(c.Value)
		}
		if userID == "" {
			userID = guestPrefix + uuid.NewString()
		}

		tok, err := a.IssueJWT(userID, RoleStudent)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     guestCookie,
			Value:    a.guestCookieValue(userID),
			Path:     "/",
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(30 * 24 * time.Hour),
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out{AccessToken: tok, Username: "guest-" + userID[len(userID)-6:]})
	}
}
