package domain

import "time"

type RateType string

const (
	RateLike    RateType = "like"
	RateDislike RateType = "dislike"
	RateNone    RateType = "none"
)

func (t RateType) Valid() bool {
	switch t {
	case RateLike, RateDislike, RateNone:
		return true
	}
	return false
}

type AccountVideoRate struct {
	AccountID int64
	VideoID   int64
	Type      RateType
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RateDelta is the change a rating applies to a video's counters.
type RateDelta struct {
	Likes    int
	Dislikes int
}

func (d RateDelta) IsZero() bool {
	return d.Likes == 0 && d.Dislikes == 0
}

// ComputeRateDelta returns the counter change produced by replacing previous with next.
// A nil previous means the account never rated the video.
func ComputeRateDelta(previous *AccountVideoRate, next RateType) RateDelta {
	var d RateDelta

	switch next {
	case RateLike:
		d.Likes++
	case RateDislike:
		d.Dislikes++
	}

	if previous != nil {
		switch previous.Type {
		case RateLike:
			d.Likes--
		case RateDislike:
			d.Dislikes--
		}
	}

	return d
}
