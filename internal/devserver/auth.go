package devserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/entity"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const userIDKey = "user_id"

// issueToken signs a token carrying the user id in the "id" claim
func (s *Server) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"id":  userID,
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.TokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// verifyToken checks the signature and expiry and returns the user id
func (s *Server) verifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.cfg.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("invalid id in token")
	}
	return userID, nil
}

// authMiddleware accepts a bearer token, or a token query parameter for
// websocket upgrades, and rejects users that no longer exist
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := s.verifyToken(token)
		if err != nil {
			s.log.Debug("Rejected token", zap.Error(err))
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		s.docs.mu.RLock()
		_, ok := s.docs.users[userID]
		s.docs.mu.RUnlock()
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func viewer(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func (s *Server) signup(c *gin.Context) {
	var req api.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		abort(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Server error")
		return
	}

	s.docs.mu.Lock()
	if s.docs.userExists(req.Email, req.Username) {
		s.docs.mu.Unlock()
		abort(c, http.StatusConflict, "User already exists")
		return
	}
	u := &userDoc{
		ID:           newID(),
		Email:        req.Email,
		Username:     req.Username,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Following:    make(map[string]bool),
		CreatedAt:    s.docs.now(),
	}
	s.docs.users[u.ID] = u
	user := renderUser(u, true)
	s.docs.mu.Unlock()

	s.log.Info("User signed up", zap.String("user_id", u.ID), zap.String("username", u.Username))
	s.respondWithToken(c, http.StatusCreated, u.ID, user)
}

func (s *Server) login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}

	s.docs.mu.RLock()
	u := s.docs.userByLogin(identifier)
	var hash []byte
	var user entity.RawUser
	if u != nil {
		hash = u.PasswordHash
		user = renderUser(u, true)
	}
	s.docs.mu.RUnlock()

	if u == nil || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		abort(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.respondWithToken(c, http.StatusOK, u.ID, user)
}

func (s *Server) respondWithToken(c *gin.Context, status int, userID string, user entity.RawUser) {
	token, err := s.issueToken(userID)
	if err != nil {
		s.log.Error("Failed to issue token", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Server error")
		return
	}
	c.JSON(status, api.AuthResponse{Token: token, User: user})
}
