package awsKmsSigner

import (
	"context"
	"errors"
	"net"

	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/aws/smithy-go"
)

var errorCodeKinds = map[string]digestSigner.RemoteErrorKind{
	"AccessDeniedException":       digestSigner.RemoteErrorKind_Auth,
	"UnrecognizedClientException": digestSigner.RemoteErrorKind_Auth,
	"InvalidSignatureException":   digestSigner.RemoteErrorKind_Auth,
	"IncompleteSignature":         digestSigner.RemoteErrorKind_Auth,
	"ExpiredTokenException":       digestSigner.RemoteErrorKind_Auth,
	"NotFoundException":           digestSigner.RemoteErrorKind_KeyNotFound,
	"InvalidKeyUsageException":    digestSigner.RemoteErrorKind_KeyState,
	"DisabledException":           digestSigner.RemoteErrorKind_KeyState,
	"KMSInvalidStateException":    digestSigner.RemoteErrorKind_KeyState,
	"KeyUnavailableException":     digestSigner.RemoteErrorKind_KeyState,
	"ThrottlingException":         digestSigner.RemoteErrorKind_Throttled,
	"LimitExceededException":      digestSigner.RemoteErrorKind_Throttled,
	"DependencyTimeoutException":  digestSigner.RemoteErrorKind_Timeout,
	"KMSInternalException":        digestSigner.RemoteErrorKind_Unknown,
}

// classifyError maps an SDK or transport error onto a RemoteServiceError.
func classifyError(keyId string, err error) error {
	if err == nil {
		return nil
	}

	kind := digestSigner.RemoteErrorKind_Unknown

	var apiErr smithy.APIError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		kind = digestSigner.RemoteErrorKind_Canceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = digestSigner.RemoteErrorKind_Timeout
	case errors.As(err, &apiErr):
		if k, ok := errorCodeKinds[apiErr.ErrorCode()]; ok {
			kind = k
		}
	case errors.As(err, &netErr):
		kind = digestSigner.RemoteErrorKind_Network
		if netErr.Timeout() {
			kind = digestSigner.RemoteErrorKind_Timeout
		}
	}

	return digestSigner.NewRemoteServiceError(kind, keyId, err)
}
