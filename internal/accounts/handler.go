package accounts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopfront/internal/auth"
	"github.com/joao-fontenele/shopfront/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type phoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type codeRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

type registerRequest struct {
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

func (h *Handler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	challenge, err := h.service.SendRegistrationOTP(r.Context(), req.PhoneNumber)
	if err != nil {
		h.writeServiceError(w, err, "error generating OTP")
		return
	}

	h.writeChallenge(w, challenge)
}

func (h *Handler) HandleLoginSendOTP(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	challenge, err := h.service.SendLoginOTP(r.Context(), req.PhoneNumber)
	if err != nil {
		h.writeServiceError(w, err, "error generating OTP")
		return
	}

	h.writeChallenge(w, challenge)
}

func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	if err := h.service.VerifyOTP(r.Context(), req.PhoneNumber, req.OTP); err != nil {
		h.writeServiceError(w, err, "error verifying OTP")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"message": "OTP verified successfully", "verified": true})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	session, err := h.service.Register(r.Context(), RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.PhoneNumber,
		OTP:      req.OTP,
	})
	if err != nil {
		h.writeServiceError(w, err, "error creating user")
		return
	}

	h.writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	session, err := h.service.Login(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		h.writeServiceError(w, err, "error logging in")
		return
	}

	h.writeJSON(w, http.StatusOK, session)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "access token required")
		return
	}

	user, err := h.service.Me(r.Context(), id.UserID)
	if err != nil {
		h.writeServiceError(w, err, "error fetching user")
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) writeChallenge(w http.ResponseWriter, c *Challenge) {
	h.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		*Challenge
	}{
		Message:   "OTP sent successfully",
		Challenge: c,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidPhone), errors.Is(err, ErrInvalidOTP),
		errors.Is(err, ErrPhoneTaken), errors.Is(err, ErrEmailTaken):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		h.writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *Handler) writeDecodeError(w http.ResponseWriter, err error) {
	var verr *httpx.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "fields": verr.Fields})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
