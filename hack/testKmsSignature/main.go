package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Layr-Labs/vault-kms-signer/internal/aws"
	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/ethSignature"
	"github.com/Layr-Labs/vault-kms-signer/pkg/logger"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner/awsKmsSigner"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	ctx := context.Background()

	cfg := config.NewDefaultSignerConfig()
	if keyId := os.Getenv(config.EnvSignerKeyID); keyId != "" {
		cfg.KeyId = keyId
	}
	if region := os.Getenv(config.EnvSignerRegion); region != "" {
		cfg.Region = region
	}

	awsCfg, err := aws.LoadAWSConfig(ctx, cfg.Region)
	if err != nil {
		panic(err)
	}

	kms := awsKmsSigner.NewAWSKMSSigner(awsCfg, cfg, l)
	ds, err := digestSigner.NewDigestSigner(cfg, kms, l)
	if err != nil {
		l.Sugar().Fatalw("failed to create digest signer", "error", err)
	}

	info, err := kms.GetKeyInfo(ctx, cfg.KeyId)
	if err != nil {
		l.Sugar().Fatalw("failed to get key info", "error", err)
	}

	message := []byte("transfer 1 ETH")
	derSig, err := ds.Sign(ctx, message)
	if err != nil {
		l.Sugar().Fatalw("failed to sign message with KMS", "error", err)
	}
	digest := ds.Digest(message)

	sig, err := ethSignature.RecoverableSignature(derSig, digest.Bytes(), info.PublicKey)
	if err != nil {
		l.Sugar().Fatalw("failed to build recoverable signature", "error", err)
	}
	recovered, err := ethSignature.RecoverAddress(digest.Bytes(), sig)
	if err != nil {
		l.Sugar().Fatalw("failed to recover address", "error", err)
	}

	fmt.Printf("Message:        %s\n", message)
	fmt.Printf("Digest:         %s\n", digest.Hex())
	fmt.Printf("DER signature:  %s\n", hexutil.Encode(derSig))
	fmt.Printf("R||S||V:        %s\n", hexutil.Encode(sig))
	fmt.Printf("KMS address:    %s\n", info.Address.Hex())
	fmt.Printf("Recovered:      %s\n", recovered.Hex())

	if recovered == info.Address {
		fmt.Println("Signature recovers to the KMS key!")
	} else {
		fmt.Println("Signature does not recover to the KMS key!")
		os.Exit(1)
	}
}
