package awsKmsSigner

import (
	"context"
	"fmt"
	"sync"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/ethSignature"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// KMSAPI is the subset of the KMS client used by the signer.
type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
}

// AWSKMSSigner signs digests with an AWS KMS ECC_SECG_P256K1 key.
type AWSKMSSigner struct {
	logger    *zap.Logger
	kmsClient KMSAPI
	awsRegion string
	limiter   *rate.Limiter

	mu       sync.RWMutex
	keyInfos map[string]*remoteSigner.KeyInfo
}

var _ remoteSigner.IKeyCustodian = (*AWSKMSSigner)(nil)

func NewAWSKMSSigner(awsCfg aws.Config, cfg *config.SignerConfig, logger *zap.Logger) *AWSKMSSigner {
	region := cfg.Region
	if region == "" {
		region = awsCfg.Region
	}
	return NewAWSKMSSignerWithClient(kms.NewFromConfig(awsCfg), region, cfg, logger)
}

func NewAWSKMSSignerWithClient(client KMSAPI, awsRegion string, cfg *config.SignerConfig, logger *zap.Logger) *AWSKMSSigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg != nil && cfg.MaxRequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), burst)
	}

	return &AWSKMSSigner{
		logger:    logger,
		kmsClient: client,
		awsRegion: awsRegion,
		limiter:   limiter,
		keyInfos:  make(map[string]*remoteSigner.KeyInfo),
	}
}

// SignDigest asks KMS to sign a pre-computed digest and returns the DER
// encoded signature exactly as KMS produced it.
func (a *AWSKMSSigner) SignDigest(ctx context.Context, req *digestSigner.SigningRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("signing request cannot be nil")
	}
	if req.MessageType != config.MessageType_Digest {
		return nil, fmt.Errorf("unsupported message type %q, only %s is supported", req.MessageType, config.MessageType_Digest)
	}
	if req.SigningAlgorithm != config.SigningAlgorithm_ECDSA_SHA_256 {
		return nil, fmt.Errorf("unsupported signing algorithm %q", req.SigningAlgorithm)
	}

	if err := a.wait(ctx); err != nil {
		return nil, classifyError(req.KeyId, err)
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(req.KeyId),
		Message:          req.Digest.Bytes(),
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, classifyError(req.KeyId, errors.Wrapf(err, "failed to sign digest with key %s in region %s", req.KeyId, a.awsRegion))
	}
	if signOutput == nil || len(signOutput.Signature) == 0 {
		return nil, digestSigner.NewRemoteServiceError(digestSigner.RemoteErrorKind_Malformed, req.KeyId, digestSigner.ErrEmptySignature)
	}

	a.logger.Debug("Signed digest with KMS key",
		zap.String("keyId", req.KeyId),
		zap.String("digest", req.Digest.Hex()),
		zap.Int("signatureLen", len(signOutput.Signature)),
	)

	return signOutput.Signature, nil
}

// GetKeyInfo fetches and caches the public key of keyId.
func (a *AWSKMSSigner) GetKeyInfo(ctx context.Context, keyId string) (*remoteSigner.KeyInfo, error) {
	a.mu.RLock()
	cached, ok := a.keyInfos[keyId]
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if err := a.wait(ctx); err != nil {
		return nil, classifyError(keyId, err)
	}

	kmsPubKey, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, classifyError(keyId, errors.Wrapf(err, "failed to get public key for key %s in region %s", keyId, a.awsRegion))
	}
	if kmsPubKey.KeySpec != "" && kmsPubKey.KeySpec != types.KeySpecEccSecgP256k1 {
		return nil, fmt.Errorf("key %s has spec %s, expected %s", keyId, kmsPubKey.KeySpec, types.KeySpecEccSecgP256k1)
	}

	pub, err := ethSignature.ParseDERPublicKey(kmsPubKey.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s in region %s", keyId, a.awsRegion)
	}

	info, err := remoteSigner.NewKeyInfo(keyId, pub)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.keyInfos[keyId] = info
	a.mu.Unlock()

	return info, nil
}

// CreateSigningKey creates a new secp256k1 signing key and points alias/<aliasName> at it.
func (a *AWSKMSSigner) CreateSigningKey(ctx context.Context, keyName string, aliasName string, environment string) (*remoteSigner.KeyInfo, error) {
	keyRes, err := a.kmsClient.CreateKey(ctx, &kms.CreateKeyInput{
		KeyUsage:    types.KeyUsageTypeSignVerify,
		KeySpec:     types.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("ECDSA key for Ethereum transaction signing - %s", keyName)),
		Tags: []types.Tag{
			{TagKey: aws.String("Name"), TagValue: aws.String(keyName)},
			{TagKey: aws.String("Environment"), TagValue: aws.String(environment)},
			{TagKey: aws.String("Purpose"), TagValue: aws.String("signing-key")},
			{TagKey: aws.String("Curve"), TagValue: aws.String("secp256k1")},
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create ECDSA key %s in region %s", keyName, a.awsRegion)
	}
	keyId := aws.ToString(keyRes.KeyMetadata.KeyId)

	if aliasName != "" {
		_, err = a.kmsClient.CreateAlias(ctx, &kms.CreateAliasInput{
			AliasName:   aws.String(fmt.Sprintf("alias/%s", aliasName)),
			TargetKeyId: aws.String(keyId),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create alias %s for key %s in region %s", aliasName, keyId, a.awsRegion)
		}
		a.logger.Sugar().Infow("Created key alias", "alias", "alias/"+aliasName, "keyId", keyId)
	}

	return a.GetKeyInfo(ctx, keyId)
}

func (a *AWSKMSSigner) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}
