package main

import (
	"log"
	"os"
	"strings"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/vault"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := loadEnvFile(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vault-signer",
		Usage: "Sign Ethereum transactions with a key held in AWS KMS",
		Description: `Signs transactions with an HSM-backed key that never leaves AWS KMS.

Payloads are hashed locally and only the 32 byte digest is sent to KMS.
The same signer deploys and operates the Vault contract and can follow
the chain head.`,
		Version: "1.0.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:  "sign",
				Usage: "Sign a hex payload and print the signature",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "payload",
						Usage:    "Hex encoded payload (e.g. a serialized unsigned transaction)",
						Required: true,
					},
				},
				Action: signCommand,
			},
			{
				Name:   "address",
				Usage:  "Print the Ethereum address of the signing key",
				Action: addressCommand,
			},
			{
				Name:   "whoami",
				Usage:  "Print the AWS identity the signer runs as",
				Action: whoamiCommand,
			},
			{
				Name:  "create-key",
				Usage: "Create a new secp256k1 signing key in KMS",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Key name tag",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "alias",
						Usage: "Alias to create, without the alias/ prefix",
					},
					&cli.StringFlag{
						Name:  "environment",
						Usage: "Environment tag",
						Value: "dev",
					},
				},
				Action: createKeyCommand,
			},
			{
				Name:  "deploy",
				Usage: "Deploy the Vault contract from its Hardhat artifact",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "artifact",
						Usage: "Path to the Hardhat artifact",
						Value: vault.DefaultArtifactPath,
					},
				},
				Action: deployCommand,
			},
			{
				Name:   "deposit",
				Usage:  "Deposit ETH into the vault",
				Flags:  []cli.Flag{vaultFlag(), amountFlag()},
				Action: depositCommand,
			},
			{
				Name:   "withdraw",
				Usage:  "Withdraw ETH from the vault",
				Flags:  []cli.Flag{vaultFlag(), amountFlag()},
				Action: withdrawCommand,
			},
			{
				Name:  "balance",
				Usage: "Print the vault balance of an account",
				Flags: []cli.Flag{
					vaultFlag(),
					&cli.StringFlag{
						Name:  "account",
						Usage: "Account to query (defaults to the signer address)",
					},
				},
				Action: balanceCommand,
			},
			{
				Name:   "monitor",
				Usage:  "Follow the chain head and print every new block (needs a ws:// rpc url)",
				Action: monitorCommand,
			},
			{
				Name:  "history",
				Usage: "List recorded signatures",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Only show the most recent records (0 for all)",
					},
				},
				Action: historyCommand,
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "key-id",
			Usage:   "KMS key id, ARN or alias",
			Value:   config.DefaultKeyId,
			EnvVars: []string{config.EnvSignerKeyID},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region of the key",
			Value:   config.DefaultRegion,
			EnvVars: []string{config.EnvSignerRegion},
		},
		&cli.StringFlag{
			Name:    "hash",
			Usage:   "Digest hash function: " + strings.Join(config.GetSupportedHashFunctionNames(), " or "),
			Value:   config.HashFunction_Keccak256.String(),
			EnvVars: []string{config.EnvSignerHashFunction},
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "Maximum KMS signing requests per second (0 disables throttling)",
			EnvVars: []string{config.EnvSignerRateLimit},
		},
		&cli.StringFlag{
			Name:    "rpc-url",
			Usage:   "Ethereum RPC URL",
			Value:   config.DefaultRpcUrl,
			EnvVars: []string{config.EnvSignerRPCURL, config.EnvSepoliaRPCURL},
		},
		&cli.StringFlag{
			Name:    "local-key",
			Usage:   "Hex private key used instead of KMS (local chains only)",
			EnvVars: []string{config.EnvSignerLocalKey},
		},
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "Environment file to load before reading flags",
			Value:   defaultEnvFile,
			EnvVars: []string{config.EnvSignerEnvFile},
		},
		&cli.StringFlag{
			Name:    "persistence",
			Usage:   "Where to keep the signing history: badger, redis or memory (memory is lost when the command exits)",
			Value:   string(config.PersistenceType_Badger),
			EnvVars: []string{config.EnvSignerPersistence},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "Badger data directory",
			Value:   config.DefaultDataDir,
			EnvVars: []string{config.EnvSignerDataDir},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis address (host:port)",
			EnvVars: []string{config.EnvSignerRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvSignerRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			EnvVars: []string{config.EnvSignerRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix for every Redis key",
			EnvVars: []string{config.EnvSignerRedisKeyPrefix},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "Enable verbose logging",
			EnvVars: []string{config.EnvSignerVerbose},
		},
	}
}

func vaultFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "vault",
		Usage:    "Vault contract address",
		Required: true,
	}
}

func amountFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "amount",
		Usage:    "Amount in ETH (e.g. 1.0)",
		Required: true,
	}
}
