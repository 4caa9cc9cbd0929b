package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peertube-pod/internal/core/services"
)

type blacklistRequest struct {
	Reason string `json:"reason" validate:"max=300"`
}

func (s *Server) addBlacklist(w http.ResponseWriter, r *http.Request) {
	var req blacklistRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	video, err := s.videoParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.blacklist.Add(r.Context(), AccountFromContext(r.Context()), video.ID, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeBlacklist(w http.ResponseWriter, r *http.Request) {
	video, err := s.videoParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.blacklist.Remove(r.Context(), AccountFromContext(r.Context()), video.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listBlacklist(w http.ResponseWriter, r *http.Request) {
	start, count, ok := pagination(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "invalid pagination")
		return
	}

	entries, total, err := s.blacklist.List(r.Context(), AccountFromContext(r.Context()), services.BlacklistListOptions{
		Start: start,
		Count: count,
		Sort:  r.URL.Query().Get("sort"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[blacklistResponse]{
		Total: total,
		Data:  mapSlice(entries, newBlacklistResponse),
	})
}

type giveOwnershipRequest struct {
	Username string `json:"username" validate:"required"`
}

func (s *Server) giveOwnership(w http.ResponseWriter, r *http.Request) {
	var req giveOwnershipRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	video, err := s.videoParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.ownership.Give(r.Context(), AccountFromContext(r.Context()), video.ID, req.Username); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listOwnership(w http.ResponseWriter, r *http.Request) {
	changes, err := s.ownership.List(r.Context(), AccountFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[ownershipResponse]{
		Total: len(changes),
		Data:  mapSlice(changes, newOwnershipResponse),
	})
}

func ownershipID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type acceptOwnershipRequest struct {
	ChannelID int64 `json:"channelId" validate:"required,gt=0"`
}

func (s *Server) acceptOwnership(w http.ResponseWriter, r *http.Request) {
	id, ok := ownershipID(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "invalid ownership id")
		return
	}
	var req acceptOwnershipRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	if _, err := s.ownership.Accept(r.Context(), AccountFromContext(r.Context()), id, req.ChannelID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refuseOwnership(w http.ResponseWriter, r *http.Request) {
	id, ok := ownershipID(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "invalid ownership id")
		return
	}

	if err := s.ownership.Refuse(r.Context(), AccountFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
