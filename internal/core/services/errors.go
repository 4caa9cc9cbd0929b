package services

import "errors"

var (
	ErrAccountNotFound   = errors.New("video account not found")
	ErrVideoNotFound     = errors.New("video not found")
	ErrChannelNotFound   = errors.New("video channel not found")
	ErrOwnershipNotFound = errors.New("video change ownership not found")
	ErrBlacklistNotFound = errors.New("video is not blacklisted")
	ErrFollowNotFound    = errors.New("follow not found")

	ErrForbidden          = errors.New("forbidden")
	ErrInvalidRating      = errors.New("invalid rating")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrAlreadyBlacklisted = errors.New("video is already blacklisted")
	ErrInvalidSort        = errors.New("invalid sort")

	ErrVideoNotOwned       = errors.New("video is not owned by this pod")
	ErrNotVideoOwner       = errors.New("account does not own the video")
	ErrSameOwner           = errors.New("cannot transfer ownership to the current owner")
	ErrChannelNotOwned     = errors.New("video channel does not belong to the account")
	ErrOwnershipNotWaiting = errors.New("video change ownership is not waiting")

	ErrFollowSelf          = errors.New("cannot follow this pod")
	ErrActorHostMismatch   = errors.New("activity actor does not belong to the signing pod")
	ErrUnsupportedObject   = errors.New("unsupported activity object")
	ErrTransactionConflict = errors.New("transaction conflict")
)
