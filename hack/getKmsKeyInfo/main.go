package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Layr-Labs/vault-kms-signer/internal/aws"
	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/logger"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner/awsKmsSigner"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	keyId := os.Getenv(config.EnvSignerKeyID)
	if keyId == "" {
		keyId = config.DefaultKeyId
	}
	region := os.Getenv(config.EnvSignerRegion)

	awsCfg, err := aws.LoadAWSConfig(context.Background(), region)
	if err != nil {
		panic(err)
	}

	cfg := config.NewDefaultSignerConfig()
	cfg.KeyId = keyId
	signer := awsKmsSigner.NewAWSKMSSigner(awsCfg, cfg, l)

	info, err := signer.GetKeyInfo(context.Background(), keyId)
	if err != nil {
		l.Sugar().Fatalw("failed to get key info", "keyId", keyId, "error", err)
	}

	uncompressed := crypto.FromECDSAPub(info.PublicKey)

	fmt.Println("=== AWS KMS secp256k1 Key ===")
	fmt.Printf("Key ID:       %s\n", info.KeyId)
	fmt.Printf("Address:      %s\n", info.Address.Hex())
	fmt.Printf("Address (geth): %s\n", crypto.PubkeyToAddress(*info.PublicKey).Hex())
	fmt.Println()
	fmt.Printf("Uncompressed (65 bytes): %s\n", hexutil.Encode(uncompressed))
	fmt.Printf("Unprefixed (64 bytes):   %s\n", info.GetPublicKeyHexUnprefixed())
	fmt.Printf("Compressed (33 bytes):   %s\n", hexutil.Encode(crypto.CompressPubkey(info.PublicKey)))
	fmt.Printf("X: 0x%064x\n", info.PublicKey.X)
	fmt.Printf("Y: 0x%064x\n", info.PublicKey.Y)
}
