package session

import "errors"

var (
	StorageCorruptErr  = errors.New("stored session corrupt")
	MissingTenantErr   = errors.New("session has no tenant scope")
	LoginSupersededErr = errors.New("login superseded by a newer attempt")
)
