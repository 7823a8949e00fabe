package core

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, store *sessions.CookieStore, provider SessionProvider, users UserRepository, mailer Mailer, db *pgxpool.Pool, redisClient *redis.Client) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()

	sessionSvc := NewSessionService(provider, users)
	minter := NewTokenMinter(cfg.AuthSecret, redisClient)

	// Global middleware: request log -> origin/CORS -> session -> CSRF -> auth bootstrap
	r.Use(RequestLogger(cfg))
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(SessionMiddleware(cfg, store))
	r.Use(CSRFMiddleware(cfg, store))
	r.Use(AuthBootstrap(sessionSvc))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	registerPages(r)

	api := r.Group("/api")
	{
		// Session augmentation: always 200, failure signaled in-body.
		api.GET("/auth/session", func(c *gin.Context) {
			res := sessionSvc.Augment(c.Request.Context(), sessionToken(c))
			c.JSON(http.StatusOK, res)
		})

		api.POST("/auth/sign-in", func(c *gin.Context) {
			var req struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			ctx := c.Request.Context()
			sess, user, err := provider.SignIn(ctx, req.Email, req.Password)
			if err != nil {
				if errors.Is(err, ErrInvalidCredentials) {
					respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
					return
				}
				RequestContextFrom(c).Logger.Printf("sign-in failed: %v", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "sign in failed")
				return
			}

			if err := setSessionToken(cfg, c, sess.Token); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set session")
				return
			}
			c.JSON(http.StatusOK, gin.H{"user": user, "success": true})
		})

		api.POST("/auth/sign-up", func(c *gin.Context) {
			var req struct {
				Name     string `json:"name"`
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Name) == "" || NormalizeEmail(req.Email) == "" || len(req.Password) < 6 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name, email, and a password of at least 6 characters are required")
				return
			}

			ctx := c.Request.Context()
			sess, user, err := provider.SignUp(ctx, req.Name, req.Email, req.Password)
			if err != nil {
				if errors.Is(err, ErrEmailTaken) {
					respondError(c, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
					return
				}
				if errors.Is(err, ErrInvalidCredentials) {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name, email, and password are required")
					return
				}
				RequestContextFrom(c).Logger.Printf("sign-up failed: %v", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "sign up failed")
				return
			}

			if err := setSessionToken(cfg, c, sess.Token); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set session")
				return
			}

			// Best-effort: a failed verification mail never blocks signup.
			if err := sendVerificationMail(c, cfg, minter, mailer, user); err != nil {
				RequestContextFrom(c).Logger.Printf("verification mail failed: %v", err)
			}

			c.JSON(http.StatusOK, gin.H{"user": user, "success": true})
		})

		api.POST("/auth/sign-out", func(c *gin.Context) {
			ctx := c.Request.Context()
			if token := sessionToken(c); token != "" {
				if err := provider.SignOut(ctx, token); err != nil {
					// Logged only; the cookie is cleared regardless.
					RequestContextFrom(c).Logger.Printf("sign-out failed: %v", err)
				}
			}
			if err := clearSessionCookie(cfg, c); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear session")
				return
			}
			c.Status(http.StatusNoContent)
		})

		api.POST("/auth/send-verification", func(c *gin.Context) {
			ra := RequestAuthFrom(c)
			if ra == nil || !ra.Authenticated() {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Login required")
				return
			}
			user := ra.User()
			if user.EmailVerified {
				c.JSON(http.StatusOK, gin.H{"success": true, "alreadyVerified": true})
				return
			}
			if err := sendVerificationMail(c, cfg, minter, mailer, user); err != nil {
				RequestContextFrom(c).Logger.Printf("verification mail failed: %v", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to send verification mail")
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true})
		})

		api.GET("/auth/verify", func(c *gin.Context) {
			userID, _, err := minter.Verify(c.Query("token"), PurposeEmailVerify)
			if err != nil {
				respondError(c, http.StatusBadRequest, "INVALID_TOKEN", "Verification link is invalid or expired")
				return
			}
			if err := users.MarkEmailVerified(c.Request.Context(), userID); err != nil {
				if errors.Is(err, ErrUserNotFound) {
					respondError(c, http.StatusBadRequest, "INVALID_TOKEN", "Verification link is invalid or expired")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to verify email")
				return
			}
			c.Redirect(http.StatusFound, verifiedPath)
		})

		api.POST("/auth/forgot-password", func(c *gin.Context) {
			var req struct {
				Email string `json:"email"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			ctx := c.Request.Context()
			u, err := users.FindByEmail(ctx, req.Email)
			if err == nil {
				token, mintErr := minter.Mint(u.ID, PurposePasswordReset, PasswordResetTTL)
				if mintErr == nil {
					link := cfg.BaseURL + resetPath + "?token=" + url.QueryEscape(token)
					body := fmt.Sprintf("Hi %s,\n\nReset your password within the next hour:\n\n%s\n\nIf you did not request this, ignore this mail.", u.Name, link)
					if sendErr := mailer.Send(ctx, u.Email, "Reset your password", body); sendErr != nil {
						RequestContextFrom(c).Logger.Printf("reset mail failed: %v", sendErr)
					}
				}
			} else if !errors.Is(err, ErrUserNotFound) {
				RequestContextFrom(c).Logger.Printf("forgot-password lookup failed: %v", err)
			}

			// Uniform response: no account enumeration.
			c.JSON(http.StatusOK, gin.H{"success": true})
		})

		api.POST("/auth/reset-password", func(c *gin.Context) {
			var req struct {
				Token    string `json:"token"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if len(req.Password) < 6 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "password must be at least 6 characters")
				return
			}

			userID, jti, err := minter.Verify(req.Token, PurposePasswordReset)
			if err != nil {
				respondError(c, http.StatusBadRequest, "INVALID_TOKEN", "Reset link is invalid or expired")
				return
			}
			ctx := c.Request.Context()
			if err := minter.Consume(ctx, jti, PasswordResetTTL); err != nil {
				if errors.Is(err, ErrTokenUsed) {
					respondError(c, http.StatusBadRequest, "INVALID_TOKEN", "Reset link was already used")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to reset password")
				return
			}

			hash, err := hashPassword(req.Password)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to reset password")
				return
			}
			if err := users.UpdatePassword(ctx, userID, hash); err != nil {
				if errors.Is(err, ErrUserNotFound) {
					respondError(c, http.StatusBadRequest, "INVALID_TOKEN", "Reset link is invalid or expired")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to reset password")
				return
			}

			// Drop every live session for the user; old cookies must die with
			// the old password.
			if rev, ok := provider.(SessionRevoker); ok {
				if err := rev.RevokeAll(ctx, userID); err != nil {
					RequestContextFrom(c).Logger.Printf("session revoke failed: %v", err)
				}
			}

			c.JSON(http.StatusOK, gin.H{"success": true})
		})

		// Admin listing: 401/403 here instead of page redirects.
		api.GET("/users", AdminOnly(), func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := users.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch users")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"items":       items,
				"count":       len(items),
				"page":        page,
				"per_page":    perPage,
				"total_items": total,
				"total_pages": calcTotalPages(total, perPage),
			})
		})

		admin := api.Group("/admin")
		admin.Use(AdminOnly())
		admin.GET("/system/status", func(c *gin.Context) {
			st := CollectSystemStatus(c.Request.Context(), db, redisClient, startedAt)
			c.JSON(http.StatusOK, st)
		})
	}

	return r
}

func sendVerificationMail(c *gin.Context, cfg Config, minter *TokenMinter, mailer Mailer, user *SessionUser) error {
	token, err := minter.Mint(user.ID, PurposeEmailVerify, EmailVerifyTTL)
	if err != nil {
		return err
	}
	link := cfg.BaseURL + "/api/auth/verify?token=" + url.QueryEscape(token)
	body := fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening this link:\n\n%s\n\nThe link expires in 24 hours.", user.Name, link)
	return mailer.Send(c.Request.Context(), user.Email, "Verify your email", body)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
