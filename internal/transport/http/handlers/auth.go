package http_handlers

import (
	"net/http"

	"github.com/baechuer/pension-service/internal/application/auth"
	"github.com/baechuer/pension-service/internal/domain"
	"github.com/baechuer/pension-service/internal/logger"
	"github.com/baechuer/pension-service/internal/transport/http/dto"
	"github.com/baechuer/pension-service/internal/transport/http/middleware"
	"github.com/baechuer/pension-service/internal/transport/http/response"
)

type AuthHandler struct {
	svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	middleware.LoginAttemptsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("account_id", res.Account.Credential.ID).
		Msg("account_logged_in")

	response.OK(w, dto.LoginData{
		User: dto.NewUserView(res.Account),
		Token: dto.TokenView{
			AccessToken: res.Tokens.AccessToken,
			TokenType:   res.Tokens.TokenType,
			ExpiresIn:   res.Tokens.ExpiresIn,
		},
	})
}

// Logout is a stateless acknowledgment; session tokens expire on their own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	response.OK(w, dto.LogoutData{LoggedOut: true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	acc, err := h.svc.Me(r.Context(), id)
	if err != nil {
		// token for an account that no longer exists
		if domain.Is(err, "account_not_found") {
			err = domain.ErrTokenInvalid()
		}
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.MeData{User: dto.NewUserView(acc)})
}
