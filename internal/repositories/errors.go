package repositories

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrCloudNotConfigured = errors.New("cloud database not configured")
)
