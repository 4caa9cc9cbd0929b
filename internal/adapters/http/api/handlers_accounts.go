package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/peertube-pod/internal/core/domain"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	account, err := s.accounts.Register(r.Context(), req.Username, req.Password, domain.RoleUser)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

type tokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	account, err := s.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, ttl, err := s.tokens.Generate(account)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newAccountResponse(AccountFromContext(r.Context())))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	channels, err := s.accounts.ListChannels(r.Context(), account.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[channelResponse]{
		Total: len(channels),
		Data:  mapSlice(channels, newChannelResponse),
	})
}

type createChannelRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	channel, err := s.accounts.CreateChannel(r.Context(), AccountFromContext(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newChannelResponse(channel))
}
