package server

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lexicard/backend/internal/users"
	"go.uber.org/zap"
)

// loginPopupTemplate notifies the opener window and closes the login popup.
var loginPopupTemplate = template.Must(template.New("login_popup").Parse(`<!DOCTYPE html>
<html>
  <head>
    <title>Login Successful</title>
  </head>
  <body>
    <p>Login successful! This window will close automatically...</p>
    <script>
      if (window.opener) {
        window.opener.postMessage({
          token: {{.Token}},
          email: {{.Email}},
          success: true
        });
        window.close();
      }
    </script>
  </body>
</html>
`))

type anonymousLoginRequest struct {
	UID string `json:"uid"`
}

func (h *httpHandler) handleAnonymousLogin(c *gin.Context) {
	var request anonymousLoginRequest
	// Body is optional; a bare POST mints a fresh identity.
	_ = c.ShouldBindJSON(&request)

	ctx := c.Request.Context()

	var user users.User
	var err error
	if request.UID != "" {
		user, err = h.users.ResumeAnonymous(ctx, request.UID)
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			h.logger.Error("anonymous resume failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
			return
		}
	}
	if user.ID == 0 {
		user, err = h.users.CreateAnonymous(ctx)
		if err != nil {
			h.logger.Error("anonymous user creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
			return
		}
	}

	if _, err := h.sessions.PurgeStale(ctx, user.ID); err != nil {
		h.logger.Warn("stale session purge failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	token, err := h.sessions.Issue(ctx, user.ID)
	if err != nil {
		h.logger.Error("session issuance failed", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"uid":     user.UID,
		"message": "Anonymous session created",
	})
}

func (h *httpHandler) handleGoogleCallback(c *gin.Context) {
	idToken := c.Query("id_token")
	if idToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	ctx := c.Request.Context()

	claims, err := h.verifier.Verify(ctx, idToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
		return
	}

	user, err := h.users.ResolveGoogle(ctx, users.GoogleIdentity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	})
	if err != nil {
		h.logger.Error("google identity resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	if c.Query("upgrade") == "true" {
		user, err = h.upgradeAnonymousSession(c, user)
		if err != nil {
			return
		}
	}

	if _, err := h.sessions.PurgeStale(ctx, user.ID); err != nil {
		h.logger.Warn("stale session purge failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	token, err := h.sessions.Issue(ctx, user.ID)
	if err != nil {
		h.logger.Error("session issuance failed", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	h.setSessionCookie(c, token)

	var page bytes.Buffer
	if err := loginPopupTemplate.Execute(&page, map[string]string{
		"Token": token,
		"Email": user.Email,
	}); err != nil {
		h.logger.Error("login popup rendering failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page.Bytes())
}

// upgradeAnonymousSession runs the merge protocol against the anonymous
// session attached to the request. Precondition failures are reported with
// distinct messages so the client can decide its next action; the response
// is written here and a non-nil error tells the caller to stop.
func (h *httpHandler) upgradeAnonymousSession(c *gin.Context, target users.User) (users.User, error) {
	ctx := c.Request.Context()

	cookieToken, err := c.Cookie(h.cookieName)
	if err != nil || cookieToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upgrade requires an active session"})
		return users.User{}, errUpgradeRejected
	}

	session, err := h.sessions.Validate(ctx, cookieToken)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upgrade requires an active session"})
		return users.User{}, errUpgradeRejected
	}

	anonymous, err := h.users.ByID(ctx, session.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upgrade requires an active session"})
		return users.User{}, errUpgradeRejected
	}

	merged, err := h.users.MergeAnonymousInto(ctx, target, anonymous)
	switch {
	case errors.Is(err, users.ErrNotAnonymous):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Can only upgrade anonymous accounts"})
		return users.User{}, errUpgradeRejected
	case errors.Is(err, users.ErrTargetAnonymous):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot merge into an anonymous account"})
		return users.User{}, errUpgradeRejected
	case err != nil:
		h.logger.Error("anonymous upgrade failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "merge_failed"})
		return users.User{}, errUpgradeRejected
	}
	return merged, nil
}

var errUpgradeRejected = errors.New("upgrade rejected")

func (h *httpHandler) handleAuthFailure(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
}

func (h *httpHandler) handleAuthStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user": gin.H{
			"email":    user.Email,
			"name":     user.Name,
			"provider": user.Provider,
		},
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(h.cookieName); err == nil && token != "" {
		if err := h.sessions.Revoke(c.Request.Context(), token); err != nil {
			h.logger.Error("session revocation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout_failed"})
			return
		}
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

func (h *httpHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, 0, "/", "", h.cookieSecure, true)
}

func (h *httpHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
}

func (h *httpHandler) handleListLanguages(c *gin.Context) {
	if h.languages == nil {
		c.JSON(http.StatusOK, gin.H{"languages": []gin.H{}})
		return
	}
	catalog, err := h.languages.List(c.Request.Context())
	if err != nil {
		h.logger.Error("language listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "languages_failed"})
		return
	}
	entries := make([]gin.H, 0, len(catalog))
	for _, language := range catalog {
		entries = append(entries, gin.H{"code": language.Code, "name": language.Name})
	}
	c.JSON(http.StatusOK, gin.H{"languages": entries})
}
