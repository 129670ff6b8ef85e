package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/9182192619/web-chat/internal/auth"
	"github.com/9182192619/web-chat/internal/models"
	"github.com/9182192619/web-chat/internal/repository"
	"github.com/9182192619/web-chat/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dbTimeout    = 5 * time.Second
	maxBodyBytes = 1 << 12

	msgInvalidBody   = "Invalid request body"
	msgMissingFields = "Username and password are required"
	msgInvalidCreds  = "Invalid credentials"
	msgUserExists    = "Username already exists"
	msgRegistered    = "Registered successfully"
	msgLoggedIn      = "Logged in"
	msgInternal      = "Internal server error"
)

type Handlers struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

func NewHandlers(users repository.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, logger *zap.Logger) *Handlers {
	return &Handlers{users: users, hasher: hasher, tokens: tokens, logger: logger}
}

// Routes mounts the REST endpoints on mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.Named("login")

	payload, ok := decodeCredentials(w, r, logger)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	user, err := h.users.GetUserByUsername(ctx, payload.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logger.Info("user not found", zap.String("username", payload.Username))
			writeJSON(w, http.StatusUnauthorized, types.AuthResponse{Message: msgInvalidCreds})
			return
		}
		logger.Error("database error", zap.String("username", payload.Username), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, types.AuthResponse{Message: msgInternal})
		return
	}

	if !h.hasher.Verify(payload.Password, user.PasswordHash) {
		logger.Info("invalid password", zap.String("username", payload.Username))
		writeJSON(w, http.StatusUnauthorized, types.AuthResponse{Message: msgInvalidCreds})
		return
	}

	resp := types.AuthResponse{Success: true, Message: msgLoggedIn}
	if h.tokens.Enabled() {
		resp.Token, err = h.tokens.GenerateToken(user.ID, user.Username)
		if err != nil {
			logger.Error("token generation failed", zap.Stringer("user_id", user.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, types.AuthResponse{Message: "Failed to create session"})
			return
		}
	}

	logger.Info("user logged in", zap.String("username", user.Username))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.Named("register")

	payload, ok := decodeCredentials(w, r, logger)
	if !ok {
		return
	}

	hashed, err := h.hasher.Hash(payload.Password)
	if err != nil {
		logger.Error("hashing error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, types.AuthResponse{Message: msgInternal})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	user := &models.User{
		ID:           uuid.New(),
		Username:     payload.Username,
		PasswordHash: hashed,
	}
	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			logger.Info("username taken", zap.String("username", payload.Username))
			writeJSON(w, http.StatusConflict, types.AuthResponse{Message: msgUserExists})
			return
		}
		logger.Error("create user failed", zap.String("username", payload.Username), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, types.AuthResponse{Message: msgInternal})
		return
	}

	logger.Info("new user created", zap.String("username", user.Username))
	writeJSON(w, http.StatusCreated, types.AuthResponse{Success: true, Message: msgRegistered})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (types.AuthRequest, bool) {
	var payload types.AuthRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		logger.Debug("decode error", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, types.AuthResponse{Message: msgInvalidBody})
		return payload, false
	}

	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" || payload.Password == "" {
		logger.Debug("empty username or password")
		writeJSON(w, http.StatusBadRequest, types.AuthResponse{Message: msgMissingFields})
		return payload, false
	}
	return payload, true
}

func writeJSON(w http.ResponseWriter, status int, body types.AuthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
