package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

var videoSorts = map[string]bool{
	"id": true, "-id": true,
	"name": true, "-name": true,
	"createdAt": true, "-createdAt": true,
	"likes": true, "-likes": true,
}

// pagination reads start and count from the query string.
func pagination(r *http.Request) (start, count int, ok bool) {
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		start = n
	}
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		count = n
	}
	return start, count, true
}

func (s *Server) listVideos(w http.ResponseWriter, r *http.Request) {
	start, count, ok := pagination(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "invalid pagination")
		return
	}
	sort := r.URL.Query().Get("sort")
	if sort != "" && !videoSorts[sort] {
		writeError(w, r, services.ErrInvalidSort)
		return
	}

	videos, total, err := s.videos.List(r.Context(), services.VideoListOptions{Start: start, Count: count, Sort: sort})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[videoResponse]{
		Total: total,
		Data:  mapSlice(videos, newVideoResponse),
	})
}

func (s *Server) videoParam(r *http.Request) (*domain.Video, error) {
	return s.videos.Get(r.Context(), chi.URLParam(r, "id"))
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.videoParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVideoResponse(video))
}

type createVideoRequest struct {
	ChannelID   int64  `json:"channelId" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"max=10000"`
}

func (s *Server) createVideo(w http.ResponseWriter, r *http.Request) {
	var req createVideoRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	video, err := s.videos.Create(r.Context(), AccountFromContext(r.Context()), req.ChannelID, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newVideoResponse(video))
}

type rateRequest struct {
	Rating string `json:"rating" validate:"required,oneof=like dislike none"`
}

func (s *Server) rateVideo(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	video, err := s.videoParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.rates.RateVideo(r.Context(), AccountFromContext(r.Context()), video.ID, domain.RateType(req.Rating)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ratingResponse struct {
	VideoID int64  `json:"videoId"`
	Rating  string `json:"rating"`
}

func (s *Server) getRating(w http.ResponseWriter, r *http.Request) {
	video, err := s.videoParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rating, err := s.rates.GetRating(r.Context(), AccountFromContext(r.Context()), video.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{VideoID: video.ID, Rating: string(rating)})
}
