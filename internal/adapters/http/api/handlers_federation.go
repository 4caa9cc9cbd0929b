package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

func (s *Server) getActor(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", federation.ContentType)
	_ = json.NewEncoder(w).Encode(s.actor)
}

func (s *Server) postInbox(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	keyID, err := federation.Verify(r.Context(), r, body, s.clock.Now(), s.pods.ResolveKey)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("rejecting unsigned or badly signed activity")
		writeErrorMessage(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	senderHost, err := federation.HostOf(keyID)
	if err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	activity, err := federation.Decode(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.inbox.Process(r.Context(), senderHost, activity); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if account := AccountFromContext(r.Context()); account == nil || !account.IsAdmin() {
		writeError(w, r, services.ErrForbidden)
		return false
	}
	return true
}

func (s *Server) listFollowing(w http.ResponseWriter, r *http.Request) {
	follows, err := s.follows.ListFollowing(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[followResponse]{Total: len(follows), Data: mapSlice(follows, newFollowResponse)})
}

func (s *Server) listFollowers(w http.ResponseWriter, r *http.Request) {
	follows, err := s.follows.ListFollowers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[followResponse]{Total: len(follows), Data: mapSlice(follows, newFollowResponse)})
}

type followRequest struct {
	Hosts []string `json:"hosts" validate:"required,min=1,dive,required,max=255"`
}

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var req followRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	if err := s.follows.Follow(r.Context(), req.Hosts); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	if err := s.follows.Unfollow(r.Context(), chi.URLParam(r, "host")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
