package services

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrIDSpaceExhausted = errors.New("could not generate an unused folder id")
	ErrRootFolder       = errors.New("root folder cannot be deleted")
)
