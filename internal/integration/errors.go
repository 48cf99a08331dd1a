package integration

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrInvalidArgument marks a provider name an adapter does not own.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProviderNotFound marks a provider missing from the registry.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrSyncInProgress is returned when another sync holds the lock for
	// the same user and provider.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrCredentialExpired means the stored credential is past its expiry
	// and the adapter could not refresh it.
	ErrCredentialExpired = errors.New("credential expired")
)

// RemoteAPIError is a non-success response from a provider API.
type RemoteAPIError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

// TransportError is a network-level failure reaching a provider.
type TransportError struct {
	Provider string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError is a failed read or write against the store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const maxBodySnippet = 512

// snippet truncates b to at most maxBodySnippet bytes without splitting a
// UTF-8 sequence.
func snippet(b []byte) string {
	if len(b) <= maxBodySnippet {
		return string(b)
	}
	cut := maxBodySnippet
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "..."
}
