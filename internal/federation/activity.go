package federation

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const (
	ContentType     = "application/activity+json"
	ActivityContext = "https://www.w3.org/ns/activitystreams"
)

type ActivityType string

const (
	TypeFollow  ActivityType = "Follow"
	TypeAccept  ActivityType = "Accept"
	TypeUndo    ActivityType = "Undo"
	TypeLike    ActivityType = "Like"
	TypeDislike ActivityType = "Dislike"
	TypeCreate  ActivityType = "Create"
	TypeUpdate  ActivityType = "Update"
)

var ErrMalformedActivity = errors.New("malformed activity")

type Activity struct {
	Context string          `json:"@context,omitempty"`
	ID      string          `json:"id"`
	Type    ActivityType    `json:"type"`
	Actor   string          `json:"actor"`
	Object  json.RawMessage `json:"object"`
}

// VideoObject is the federated representation of a video.
type VideoObject struct {
	Type         string    `json:"type"`
	ID           string    `json:"id"`
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	Content      string    `json:"content,omitempty"`
	AttributedTo string    `json:"attributedTo"`
	Likes        int64     `json:"likes"`
	Dislikes     int64     `json:"dislikes"`
	Published    time.Time `json:"published"`
	Updated      time.Time `json:"updated"`
}

// NewActivity builds an activity whose object is either an IRI (string), a nested
// *Activity or a *VideoObject.
func NewActivity(id string, typ ActivityType, actor string, object any) (*Activity, error) {
	raw, err := json.Marshal(object)
	if err != nil {
		return nil, fmt.Errorf("encoding %s object: %w", typ, err)
	}
	return &Activity{
		Context: ActivityContext,
		ID:      id,
		Type:    typ,
		Actor:   actor,
		Object:  raw,
	}, nil
}

func (a *Activity) Validate() error {
	if a.ID == "" || a.Type == "" || a.Actor == "" || len(a.Object) == 0 {
		return ErrMalformedActivity
	}
	return nil
}

// ObjectIRI decodes the object as a plain IRI.
func (a *Activity) ObjectIRI() (string, error) {
	var iri string
	if err := json.Unmarshal(a.Object, &iri); err != nil {
		return "", fmt.Errorf("%w: object of %s is not an IRI", ErrMalformedActivity, a.Type)
	}
	return iri, nil
}

// ObjectActivity decodes the object as an embedded activity (Accept, Undo).
func (a *Activity) ObjectActivity() (*Activity, error) {
	var inner Activity
	if err := json.Unmarshal(a.Object, &inner); err != nil {
		return nil, fmt.Errorf("%w: object of %s is not an activity", ErrMalformedActivity, a.Type)
	}
	if err := inner.Validate(); err != nil {
		return nil, err
	}
	return &inner, nil
}

func (a *Activity) ObjectVideo() (*VideoObject, error) {
	var video VideoObject
	if err := json.Unmarshal(a.Object, &video); err != nil || video.Type != "Video" {
		return nil, fmt.Errorf("%w: object of %s is not a video", ErrMalformedActivity, a.Type)
	}
	if video.ID == "" || video.UUID == "" || video.AttributedTo == "" {
		return nil, ErrMalformedActivity
	}
	return &video, nil
}

// ObjectType peeks at the "type" field of a nested object without decoding it fully.
func (a *Activity) ObjectType() string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(a.Object, &head); err != nil {
		return ""
	}
	return head.Type
}

func Decode(body []byte) (*Activity, error) {
	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedActivity, err)
	}
	if err := activity.Validate(); err != nil {
		return nil, err
	}
	return &activity, nil
}
