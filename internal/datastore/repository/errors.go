package repository

import "errors"

// Sentinel errors returned by repositories. Callers match with errors.Is.
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")
)
