package domain

import "time"

type VideoBlacklist struct {
	ID        int64
	VideoID   int64
	Reason    string
	CreatedAt time.Time

	// filled on listing
	VideoName string
	VideoUUID string
}

type OwnershipStatus string

const (
	OwnershipWaiting  OwnershipStatus = "WAITING"
	OwnershipAccepted OwnershipStatus = "ACCEPTED"
	OwnershipRefused  OwnershipStatus = "REFUSED"
)

type VideoChangeOwnership struct {
	ID                 int64
	VideoID            int64
	InitiatorAccountID int64
	NextOwnerAccountID int64
	Status             OwnershipStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
