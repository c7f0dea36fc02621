package awsKmsSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"errors"
	"math/big"
	"net"
	"testing"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/ethSignature"
	"github.com/Layr-Labs/vault-kms-signer/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKMS signs with a local key and answers like KMS does: DER signatures,
// sometimes with a high S value, and DER SubjectPublicKeyInfo public keys.
type fakeKMS struct {
	key          *cryptoEcdsa.PrivateKey
	signInputs   []*kms.SignInput
	pubKeyCalls  int
	signErr      error
	emptySig     bool
	returnHighS  bool
	createdAlias string
}

func newFakeKMS(t *testing.T) *fakeKMS {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fakeKMS{key: key}
}

func (f *fakeKMS) Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.signInputs = append(f.signInputs, params)
	if f.signErr != nil {
		return nil, f.signErr
	}
	if f.emptySig {
		return &kms.SignOutput{KeyId: params.KeyId}, nil
	}
	sig, err := crypto.Sign(params.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.returnHighS {
		s = new(big.Int).Sub(crypto.S256().Params().N, s)
	}
	der, err := ethSignature.EncodeDERSignature(r, s)
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{
		KeyId:            params.KeyId,
		Signature:        der,
		SigningAlgorithm: params.SigningAlgorithm,
	}, nil
}

func (f *fakeKMS) GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	f.pubKeyCalls++
	der, err := ethSignature.EncodeDERPublicKey(&f.key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{
		KeyId:     params.KeyId,
		KeySpec:   types.KeySpecEccSecgP256k1,
		PublicKey: der,
	}, nil
}

func (f *fakeKMS) CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error) {
	return &kms.CreateKeyOutput{
		KeyMetadata: &types.KeyMetadata{KeyId: aws.String("1234abcd-12ab-34cd-56ef-1234567890ab")},
	}, nil
}

func (f *fakeKMS) CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error) {
	f.createdAlias = aws.ToString(params.AliasName)
	return &kms.CreateAliasOutput{}, nil
}

func newTestKMSSigner(t *testing.T, client KMSAPI) *AWSKMSSigner {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	require.NoError(t, err)
	return NewAWSKMSSignerWithClient(client, "us-east-1", config.NewDefaultSignerConfig(), l)
}

func newRequest(payload []byte) *digestSigner.SigningRequest {
	return &digestSigner.SigningRequest{
		KeyId:            "alias/HSM-Key",
		Digest:           digestSigner.Keccak256(payload),
		MessageType:      config.MessageType_Digest,
		SigningAlgorithm: config.SigningAlgorithm_ECDSA_SHA_256,
	}
}

func Test_AWSKMSSigner_SignDigest(t *testing.T) {
	t.Run("Should send the digest with DIGEST and ECDSA_SHA_256", func(t *testing.T) {
		fake := newFakeKMS(t)
		signer := newTestKMSSigner(t, fake)
		req := newRequest([]byte("transfer 1 ETH"))

		der, err := signer.SignDigest(context.Background(), req)
		require.NoError(t, err)
		require.NotEmpty(t, der)

		require.Len(t, fake.signInputs, 1)
		input := fake.signInputs[0]
		assert.Equal(t, "alias/HSM-Key", aws.ToString(input.KeyId))
		assert.Equal(t, req.Digest.Bytes(), input.Message)
		assert.Equal(t, types.MessageTypeDigest, input.MessageType)
		assert.Equal(t, types.SigningAlgorithmSpecEcdsaSha256, input.SigningAlgorithm)
	})

	t.Run("Should return a signature that recovers the KMS address", func(t *testing.T) {
		fake := newFakeKMS(t)
		fake.returnHighS = true
		signer := newTestKMSSigner(t, fake)
		req := newRequest([]byte("transfer 1 ETH"))

		der, err := signer.SignDigest(context.Background(), req)
		require.NoError(t, err)

		info, err := signer.GetKeyInfo(context.Background(), req.KeyId)
		require.NoError(t, err)

		sig, err := ethSignature.RecoverableSignature(der, req.Digest.Bytes(), info.PublicKey)
		require.NoError(t, err)

		addr, err := ethSignature.RecoverAddress(req.Digest.Bytes(), sig)
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(fake.key.PublicKey), addr)
	})

	t.Run("Should classify an auth failure", func(t *testing.T) {
		fake := newFakeKMS(t)
		fake.signErr = &smithy.GenericAPIError{Code: "UnrecognizedClientException", Message: "The security token included in the request is invalid."}
		signer := newTestKMSSigner(t, fake)

		sig, err := signer.SignDigest(context.Background(), newRequest([]byte("transfer 1 ETH")))
		require.Error(t, err)
		assert.Nil(t, sig)
		assert.Equal(t, digestSigner.RemoteErrorKind_Auth, digestSigner.KindOf(err))
	})

	t.Run("Should classify an unknown key", func(t *testing.T) {
		fake := newFakeKMS(t)
		fake.signErr = &types.NotFoundException{Message: aws.String("Alias alias/HSM-Key is not found.")}
		signer := newTestKMSSigner(t, fake)

		_, err := signer.SignDigest(context.Background(), newRequest([]byte("transfer 1 ETH")))
		require.Error(t, err)
		assert.Equal(t, digestSigner.RemoteErrorKind_KeyNotFound, digestSigner.KindOf(err))
	})

	t.Run("Should classify throttling", func(t *testing.T) {
		fake := newFakeKMS(t)
		fake.signErr = &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}
		signer := newTestKMSSigner(t, fake)

		_, err := signer.SignDigest(context.Background(), newRequest([]byte("transfer 1 ETH")))
		require.Error(t, err)
		assert.Equal(t, digestSigner.RemoteErrorKind_Throttled, digestSigner.KindOf(err))
	})

	t.Run("Should classify a network failure", func(t *testing.T) {
		fake := newFakeKMS(t)
		fake.signErr = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		signer := newTestKMSSigner(t, fake)

		_, err := signer.SignDigest(context.Background(), newRequest([]byte("transfer 1 ETH")))
		require.Error(t, err)
		assert.Equal(t, digestSigner.RemoteErrorKind_Network, digestSigner.KindOf(err))
	})

	t.Run("Should treat a missing signature as malformed", func(t *testing.T) {
		fake := newFakeKMS(t)
		fake.emptySig = true
		signer := newTestKMSSigner(t, fake)

		_, err := signer.SignDigest(context.Background(), newRequest([]byte("transfer 1 ETH")))
		require.Error(t, err)
		assert.Equal(t, digestSigner.RemoteErrorKind_Malformed, digestSigner.KindOf(err))
	})

	t.Run("Should refuse to sign a raw message", func(t *testing.T) {
		fake := newFakeKMS(t)
		signer := newTestKMSSigner(t, fake)
		req := newRequest([]byte("transfer 1 ETH"))
		req.MessageType = "RAW"

		_, err := signer.SignDigest(context.Background(), req)
		require.Error(t, err)
		assert.Empty(t, fake.signInputs)
	})
}

func Test_AWSKMSSigner_WithDigestSigner(t *testing.T) {
	fake := newFakeKMS(t)
	fake.signErr = &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}
	kmsSigner := newTestKMSSigner(t, fake)

	ds, err := digestSigner.NewDigestSigner(config.NewDefaultSignerConfig(), kmsSigner, nil)
	require.NoError(t, err)

	sig, err := ds.Sign(context.Background(), []byte("transfer 1 ETH"))
	require.Error(t, err)
	assert.Nil(t, sig)
	assert.True(t, digestSigner.IsRemoteServiceError(err))
	assert.Equal(t, digestSigner.RemoteErrorKind_Auth, digestSigner.KindOf(err))

	var apiErr smithy.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "AccessDeniedException", apiErr.ErrorCode())
}

func Test_AWSKMSSigner_GetKeyInfo(t *testing.T) {
	fake := newFakeKMS(t)
	signer := newTestKMSSigner(t, fake)

	info, err := signer.GetKeyInfo(context.Background(), "alias/HSM-Key")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(fake.key.PublicKey), info.Address)

	_, err = signer.GetKeyInfo(context.Background(), "alias/HSM-Key")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.pubKeyCalls, "public key should be cached")
}

func Test_AWSKMSSigner_CreateSigningKey(t *testing.T) {
	fake := newFakeKMS(t)
	signer := newTestKMSSigner(t, fake)

	info, err := signer.CreateSigningKey(context.Background(), "vault-deployer", "HSM-Key", "sepolia")
	require.NoError(t, err)
	assert.Equal(t, "1234abcd-12ab-34cd-56ef-1234567890ab", info.KeyId)
	assert.Equal(t, "alias/HSM-Key", fake.createdAlias)
}

func Test_AWSKMSSigner_RateLimit(t *testing.T) {
	fake := newFakeKMS(t)
	cfg := config.NewDefaultSignerConfig()
	cfg.MaxRequestsPerSecond = 0.001
	cfg.Burst = 1
	signer := NewAWSKMSSignerWithClient(fake, "us-east-1", cfg, nil)

	_, err := signer.SignDigest(context.Background(), newRequest([]byte("first")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = signer.SignDigest(ctx, newRequest([]byte("second")))
	require.Error(t, err)
	assert.True(t, digestSigner.IsRemoteServiceError(err))
	assert.Len(t, fake.signInputs, 1, "throttled call must not reach KMS")
}
