package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	internalAws "github.com/Layr-Labs/vault-kms-signer/internal/aws"
	"github.com/Layr-Labs/vault-kms-signer/pkg/auditRecorder"
	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/logger"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence/factory"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner/awsKmsSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner/inMemorySigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/transactionSigner"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	defaultEnvFile = ".env"
	localKeyId     = "local-key-0"
)

// loadEnvFile loads the env file named by --env-file (or .env) before the
// flags are parsed, so flag EnvVars can come from it. Variables that are
// already set win. A missing default file is not an error.
func loadEnvFile(args []string) error {
	path, explicit := envFileFromArgs(args)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func envFileFromArgs(args []string) (string, bool) {
	for i, arg := range args {
		switch {
		case arg == "--env-file" || arg == "-env-file":
			if i+1 < len(args) {
				return args[i+1], true
			}
		case strings.HasPrefix(arg, "--env-file="):
			return strings.TrimPrefix(arg, "--env-file="), true
		case strings.HasPrefix(arg, "-env-file="):
			return strings.TrimPrefix(arg, "-env-file="), true
		}
	}
	if path := os.Getenv(config.EnvSignerEnvFile); path != "" {
		return path, true
	}
	return defaultEnvFile, false
}

func signerConfigFromContext(c *cli.Context) (*config.SignerConfig, error) {
	cfg := config.NewDefaultSignerConfig()
	cfg.KeyId = c.String("key-id")
	cfg.Region = c.String("region")
	cfg.HashFunction = config.HashFunction(strings.ToLower(c.String("hash")))
	cfg.MaxRequestsPerSecond = c.Float64("rate-limit")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signer configuration: %w", err)
	}
	return cfg, nil
}

func persistenceConfigFromContext(c *cli.Context) (*config.PersistenceConfig, error) {
	cfg := &config.PersistenceConfig{
		Type:           config.PersistenceType(strings.ToLower(c.String("persistence"))),
		DataDir:        c.String("data-dir"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persistence configuration: %w", err)
	}
	return cfg, nil
}

// runtime holds everything a command needs, built from the global flags.
// The key custody side is set up lazily so commands that only read local
// state work without AWS credentials.
type runtime struct {
	logger       *zap.Logger
	signerConfig *config.SignerConfig
	store        persistence.ISignerPersistence
	localKey     string

	custody      remoteSigner.IKeyCustodian
	kmsSigner    *awsKmsSigner.AWSKMSSigner
	awsConfig    *aws.Config
	digestSigner *digestSigner.DigestSigner
}

func newRuntime(c *cli.Context) (*runtime, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	signerCfg, err := signerConfigFromContext(c)
	if err != nil {
		return nil, err
	}
	persistenceCfg, err := persistenceConfigFromContext(c)
	if err != nil {
		return nil, err
	}

	store, err := factory.NewPersistence(persistenceCfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	return &runtime{
		logger:       l,
		signerConfig: signerCfg,
		store:        store,
		localKey:     c.String("local-key"),
	}, nil
}

// initSigner connects to the key custody service and builds the digest signer.
func (rt *runtime) initSigner(ctx context.Context) error {
	if rt.digestSigner != nil {
		return nil
	}

	if rt.localKey != "" {
		custody, err := newLocalCustody(rt.localKey, rt.signerConfig.KeyId, rt.logger)
		if err != nil {
			return err
		}
		rt.custody = custody
		rt.logger.Sugar().Warnw("Using a local private key instead of KMS", "keyId", rt.signerConfig.KeyId)
	} else {
		if err := rt.initAWS(ctx); err != nil {
			return err
		}
		rt.kmsSigner = awsKmsSigner.NewAWSKMSSigner(*rt.awsConfig, rt.signerConfig, rt.logger)
		rt.custody = rt.kmsSigner
	}

	recorder, err := auditRecorder.NewAuditRecorder(rt.store, rt.signerConfig.HashFunction, rt.logger)
	if err != nil {
		return err
	}

	rt.digestSigner, err = digestSigner.NewDigestSigner(rt.signerConfig, rt.custody, rt.logger, digestSigner.WithObserver(recorder))
	if err != nil {
		return fmt.Errorf("failed to create digest signer: %w", err)
	}
	return nil
}

func (rt *runtime) initAWS(ctx context.Context) error {
	if rt.awsConfig != nil {
		return nil
	}
	awsCfg, err := internalAws.LoadAWSConfig(ctx, rt.signerConfig.Region)
	if err != nil {
		return err
	}
	rt.awsConfig = &awsCfg
	return nil
}

// newLocalCustody loads privateKeyHex so that keyId (an id or alias/<name>) resolves to it.
func newLocalCustody(privateKeyHex string, keyId string, l *zap.Logger) (*inMemorySigner.InMemorySigner, error) {
	custody := inMemorySigner.NewInMemorySigner(l)

	id, alias := keyId, ""
	if strings.HasPrefix(keyId, "alias/") {
		id, alias = localKeyId, strings.TrimPrefix(keyId, "alias/")
	}
	if err := custody.LoadPrivateKeyFromHex(id, privateKeyHex, "local", alias); err != nil {
		return nil, fmt.Errorf("failed to load local key: %w", err)
	}
	return custody, nil
}

func (rt *runtime) keyInfo(ctx context.Context) (*remoteSigner.KeyInfo, error) {
	if err := rt.initSigner(ctx); err != nil {
		return nil, err
	}
	return rt.custody.GetKeyInfo(ctx, rt.signerConfig.KeyId)
}

func (rt *runtime) dialChain(ctx context.Context, rpcUrl string) (*ethclient.Client, error) {
	chainCfg := &config.ChainConfig{RpcUrl: rpcUrl}
	if err := chainCfg.Validate(); err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcUrl, err)
	}
	return client, nil
}

func (rt *runtime) transactionSigner(ctx context.Context, client transactionSigner.IEthBackend) (*transactionSigner.KMSTransactionSigner, error) {
	if err := rt.initSigner(ctx); err != nil {
		return nil, err
	}
	return transactionSigner.NewKMSTransactionSigner(ctx, rt.digestSigner, rt.custody, client, rt.logger)
}

func (rt *runtime) close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Sugar().Warnw("Failed to close persistence", "error", err)
		}
	}
	_ = rt.logger.Sync()
}
