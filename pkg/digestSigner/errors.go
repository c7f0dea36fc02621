package digestSigner

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyPayload   = errors.New("payload cannot be empty")
	ErrEmptySignature = errors.New("remote signer returned an empty signature")
)

type RemoteErrorKind string

const (
	RemoteErrorKind_Unknown     RemoteErrorKind = "unknown"
	RemoteErrorKind_Network     RemoteErrorKind = "network"
	RemoteErrorKind_Auth        RemoteErrorKind = "auth"
	RemoteErrorKind_KeyNotFound RemoteErrorKind = "key_not_found"
	RemoteErrorKind_KeyState    RemoteErrorKind = "key_state"
	RemoteErrorKind_Throttled   RemoteErrorKind = "throttled"
	RemoteErrorKind_Malformed   RemoteErrorKind = "malformed_response"
	RemoteErrorKind_Timeout     RemoteErrorKind = "timeout"
	RemoteErrorKind_Canceled    RemoteErrorKind = "canceled"
)

// RemoteServiceError is returned for every failure of the remote signing call,
// including a response that carries no signature.
type RemoteServiceError struct {
	Kind  RemoteErrorKind
	KeyId string
	Err   error
}

func NewRemoteServiceError(kind RemoteErrorKind, keyId string, err error) *RemoteServiceError {
	return &RemoteServiceError{
		Kind:  kind,
		KeyId: keyId,
		Err:   err,
	}
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("remote signing with key %s failed (%s): %v", e.KeyId, e.Kind, e.Err)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// IsRemoteServiceError reports whether err is, or wraps, a RemoteServiceError.
func IsRemoteServiceError(err error) bool {
	var rse *RemoteServiceError
	return errors.As(err, &rse)
}

// KindOf returns the RemoteErrorKind carried by err, or Unknown.
func KindOf(err error) RemoteErrorKind {
	var rse *RemoteServiceError
	if errors.As(err, &rse) {
		return rse.Kind
	}
	return RemoteErrorKind_Unknown
}

// asRemoteServiceError keeps an already classified error and classifies
// anything else by the context outcome. The remote's error value is never
// modified; a missing key id is filled in on a copy.
func asRemoteServiceError(keyId string, err error) *RemoteServiceError {
	var rse *RemoteServiceError
	if errors.As(err, &rse) {
		if rse.KeyId != "" {
			return rse
		}
		cpy := *rse
		cpy.KeyId = keyId
		return &cpy
	}

	kind := RemoteErrorKind_Unknown
	switch {
	case errors.Is(err, context.Canceled):
		kind = RemoteErrorKind_Canceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = RemoteErrorKind_Timeout
	}
	return NewRemoteServiceError(kind, keyId, err)
}
