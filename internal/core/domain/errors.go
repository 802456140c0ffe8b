package domain

import "errors"

var (
	ErrNotFound         = errors.New("meeting not found")
	ErrMeetingFull      = errors.New("meeting full")
	ErrMeetingEnded     = errors.New("meeting has ended")
	ErrCodeTaken        = errors.New("meet code already assigned")
	ErrMalformedMessage = errors.New("malformed message")
	ErrNotJoined        = errors.New("connection has not joined a meeting")
	ErrAlreadyJoined    = errors.New("connection already joined a meeting")
	ErrMediaDenied      = errors.New("camera or microphone permission denied")
	ErrTransport        = errors.New("transport failure")
)
