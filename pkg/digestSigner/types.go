package digestSigner

import (
	"context"
	"encoding/hex"
)

// Digest is the 256-bit hash of a transaction payload.
type Digest [32]byte

func (d Digest) Bytes() []byte {
	return d[:]
}

func (d Digest) Hex() string {
	return "0x" + hex.EncodeToString(d[:])
}

// SigningRequest is the parameter bundle sent to the remote signer. It is built
// fresh for every call and never persisted.
type SigningRequest struct {
	KeyId            string
	Digest           Digest
	MessageType      string
	SigningAlgorithm string
}

// IRemoteSigner is the capability of signing a pre-hashed digest with a key that
// never leaves the remote service.
type IRemoteSigner interface {
	SignDigest(ctx context.Context, req *SigningRequest) ([]byte, error)
}

// ISigningObserver is notified after every successful signature.
type ISigningObserver interface {
	RecordSignature(ctx context.Context, req *SigningRequest, signature []byte) error
}
