package core

import "errors"

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrNotMember    = errors.New("not a member of this chat")
	ErrNotAdmin     = errors.New("admin privileges required")
	ErrEmptyMessage = errors.New("message needs text or an image")
)
