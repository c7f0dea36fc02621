package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	internalAws "github.com/Layr-Labs/vault-kms-signer/internal/aws"
	"github.com/Layr-Labs/vault-kms-signer/pkg/ethSignature"
	"github.com/Layr-Labs/vault-kms-signer/pkg/headMonitor"
	"github.com/Layr-Labs/vault-kms-signer/pkg/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
)

// withRuntime builds the runtime for a command and closes it afterwards.
func withRuntime(action func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := newRuntime(c)
		if err != nil {
			return err
		}
		defer rt.close()
		return action(c, rt)
	}
}

var (
	signCommand      = withRuntime(sign)
	addressCommand   = withRuntime(address)
	whoamiCommand    = withRuntime(whoami)
	createKeyCommand = withRuntime(createKey)
	deployCommand    = withRuntime(deploy)
	depositCommand   = withRuntime(deposit)
	withdrawCommand  = withRuntime(withdraw)
	balanceCommand   = withRuntime(balance)
	monitorCommand   = withRuntime(monitor)
	historyCommand   = withRuntime(history)
)

func sign(c *cli.Context, rt *runtime) error {
	payload, err := hexutil.Decode(ensureHexPrefix(c.String("payload")))
	if err != nil {
		return fmt.Errorf("payload must be hex encoded: %w", err)
	}

	info, err := rt.keyInfo(c.Context)
	if err != nil {
		return fmt.Errorf("failed to resolve signing key: %w", err)
	}

	signature, err := rt.digestSigner.Sign(c.Context, payload)
	if err != nil {
		return err
	}
	digest := rt.digestSigner.Digest(payload)

	out := c.App.Writer
	fmt.Fprintf(out, "Key:        %s\n", info.KeyId)
	fmt.Fprintf(out, "Digest:     %s (%s)\n", digest.Hex(), rt.signerConfig.HashFunction)
	fmt.Fprintf(out, "Signature:  %s\n", hexutil.Encode(signature))

	// KMS answers with DER; also print the recoverable form Ethereum uses
	recoverable, err := ethSignature.RecoverableSignature(signature, digest.Bytes(), info.PublicKey)
	if err != nil {
		rt.logger.Sugar().Debugw("Signature is not a recoverable secp256k1 signature", "error", err)
		return nil
	}
	ethSig, err := ethSignature.ToEthereumV(recoverable)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Ethereum:   %s\n", hexutil.Encode(ethSig))
	fmt.Fprintf(out, "Signer:     %s\n", info.Address.Hex())
	return nil
}

func address(c *cli.Context, rt *runtime) error {
	info, err := rt.keyInfo(c.Context)
	if err != nil {
		return fmt.Errorf("failed to resolve signing key: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Key:        %s\n", info.KeyId)
	fmt.Fprintf(c.App.Writer, "Address:    %s\n", info.Address.Hex())
	fmt.Fprintf(c.App.Writer, "Public key: %s\n", info.GetPublicKeyHex())
	return nil
}

func whoami(c *cli.Context, rt *runtime) error {
	if err := rt.initAWS(c.Context); err != nil {
		return err
	}
	identity, err := internalAws.GetCallerIdentity(c.Context, *rt.awsConfig)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Account: %s\n", identity.Account)
	fmt.Fprintf(c.App.Writer, "Arn:     %s\n", identity.Arn)
	fmt.Fprintf(c.App.Writer, "UserId:  %s\n", identity.UserId)
	return nil
}

func createKey(c *cli.Context, rt *runtime) error {
	if rt.localKey != "" {
		return fmt.Errorf("create-key needs KMS, unset --local-key")
	}
	if err := rt.initSigner(c.Context); err != nil {
		return err
	}
	info, err := rt.kmsSigner.CreateSigningKey(c.Context, c.String("name"), c.String("alias"), c.String("environment"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "✅ Created key %s\n", info.KeyId)
	fmt.Fprintf(c.App.Writer, "Address: %s\n", info.Address.Hex())
	return nil
}

func deploy(c *cli.Context, rt *runtime) error {
	artifact, err := vault.LoadArtifact(c.String("artifact"))
	if err != nil {
		return err
	}

	client, err := rt.dialChain(c.Context, c.String("rpc-url"))
	if err != nil {
		return err
	}
	defer client.Close()

	ts, err := rt.transactionSigner(c.Context, client)
	if err != nil {
		return err
	}

	v, receipt, err := vault.Deploy(c.Context, artifact, ts, client, rt.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Vault deployed to: %s\n", v.Address().Hex())
	fmt.Fprintf(c.App.Writer, "Transaction:       %s\n", receipt.TxHash.Hex())
	return nil
}

func deposit(c *cli.Context, rt *runtime) error {
	return withVault(c, rt, func(ctx context.Context, v *vault.Client) error {
		amount, err := vault.ParseEther(c.String("amount"))
		if err != nil {
			return err
		}
		receipt, err := v.Deposit(ctx, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "✅ Deposited %s ETH (tx %s)\n", vault.FormatEther(amount), receipt.TxHash.Hex())
		return nil
	})
}

func withdraw(c *cli.Context, rt *runtime) error {
	return withVault(c, rt, func(ctx context.Context, v *vault.Client) error {
		amount, err := vault.ParseEther(c.String("amount"))
		if err != nil {
			return err
		}
		receipt, err := v.Withdraw(ctx, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "✅ Withdrew %s ETH (tx %s)\n", vault.FormatEther(amount), receipt.TxHash.Hex())
		return nil
	})
}

func balance(c *cli.Context, rt *runtime) error {
	return withVault(c, rt, func(ctx context.Context, v *vault.Client) error {
		var account common.Address
		if a := c.String("account"); a != "" {
			if !common.IsHexAddress(a) {
				return fmt.Errorf("invalid account address %q", a)
			}
			account = common.HexToAddress(a)
		} else {
			info, err := rt.keyInfo(ctx)
			if err != nil {
				return err
			}
			account = info.Address
		}

		bal, err := v.Balances(ctx, account)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: %s ETH\n", account.Hex(), vault.FormatEther(bal))
		return nil
	})
}

func withVault(c *cli.Context, rt *runtime, fn func(ctx context.Context, v *vault.Client) error) error {
	addr := c.String("vault")
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid vault address %q", addr)
	}

	client, err := rt.dialChain(c.Context, c.String("rpc-url"))
	if err != nil {
		return err
	}
	defer client.Close()

	ts, err := rt.transactionSigner(c.Context, client)
	if err != nil {
		return err
	}

	v, err := vault.NewClient(common.HexToAddress(addr), ts, client, rt.logger)
	if err != nil {
		return err
	}
	return fn(c.Context, v)
}

func monitor(c *cli.Context, rt *runtime) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := rt.dialChain(ctx, c.String("rpc-url"))
	if err != nil {
		return err
	}
	defer client.Close()

	return newMonitor(client, rt).Run(ctx)
}

func newMonitor(client *ethclient.Client, rt *runtime) *headMonitor.HeadMonitor {
	return headMonitor.NewHeadMonitor(client, rt.store, nil, rt.logger)
}

func history(c *cli.Context, rt *runtime) error {
	records, err := rt.store.ListSigningRecords()
	if err != nil {
		return err
	}
	if limit := c.Int("limit"); limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	if len(records) == 0 {
		fmt.Fprintln(c.App.Writer, "No signatures recorded")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(c.App.Writer, "%d  %s  %s  %s  %s\n", r.CreatedAt, r.Id, r.KeyId, r.Digest, r.Signature)
	}
	return nil
}

func ensureHexPrefix(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
