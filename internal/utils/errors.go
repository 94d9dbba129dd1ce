package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is invalid")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- listing publisher ------------------
var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrAdapterNotRegistered = errors.New("no adapter registered for platform")
	ErrValidationFailed     = errors.New("listing failed marketplace validation")
	ErrMissingCredential    = errors.New("listing has no platform credential")
	ErrInvalidJobPayload    = errors.New("invalid publish job payload")
	ErrInvalidCleanState    = errors.New("only completed or failed jobs can be cleaned")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// ----------------- credentials ------------------
var (
	ErrCredentialNotFound          = errors.New("Platform credential not found")
	ErrCredentialSecretUnavailable = errors.New("Platform credential secret not available. Rotate the credential.")
	ErrCredentialInactive          = errors.New("platform credential is inactive")
)

// ----------------- marketplace API ------------------
var (
	ErrExternalAPI = errors.New("marketplace API request failed")
)
