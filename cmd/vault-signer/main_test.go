package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Layr-Labs/vault-kms-signer/internal/tests"
	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"vault-signer"}, args...))
	return out.String(), err
}

func localArgs(t *testing.T, extra ...string) []string {
	t.Helper()
	args := []string{
		"--local-key", tests.DevAccountPrivateKey1,
		"--key-id", "alias/HSM-Key",
		"--persistence", "badger",
		"--data-dir", filepath.Join(t.TempDir(), "data"),
	}
	return append(args, extra...)
}

func Test_EnvFileFromArgs(t *testing.T) {
	t.Setenv(config.EnvSignerEnvFile, "")

	cases := []struct {
		name     string
		args     []string
		path     string
		explicit bool
	}{
		{"default", []string{"vault-signer", "address"}, ".env", false},
		{"separate value", []string{"vault-signer", "--env-file", "prod.env", "address"}, "prod.env", true},
		{"equals form", []string{"vault-signer", "--env-file=prod.env", "address"}, "prod.env", true},
		{"single dash", []string{"vault-signer", "-env-file=prod.env"}, "prod.env", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path, explicit := envFileFromArgs(tc.args)
			assert.Equal(t, tc.path, path)
			assert.Equal(t, tc.explicit, explicit)
		})
	}

	t.Run("environment variable", func(t *testing.T) {
		t.Setenv(config.EnvSignerEnvFile, "from-env.env")
		path, explicit := envFileFromArgs([]string{"vault-signer"})
		assert.Equal(t, "from-env.env", path)
		assert.True(t, explicit)
	})
}

func Test_LoadEnvFile(t *testing.T) {
	t.Setenv(config.EnvSignerEnvFile, "")

	t.Run("loads variables that are not already set", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("VAULT_SIGNER_TEST_A=from-file\nVAULT_SIGNER_TEST_B=from-file\n"), 0o600))
		t.Setenv("VAULT_SIGNER_TEST_A", "")
		os.Unsetenv("VAULT_SIGNER_TEST_A")
		t.Setenv("VAULT_SIGNER_TEST_B", "preset")

		require.NoError(t, loadEnvFile([]string{"vault-signer", "--env-file", path}))
		assert.Equal(t, "from-file", os.Getenv("VAULT_SIGNER_TEST_A"))
		assert.Equal(t, "preset", os.Getenv("VAULT_SIGNER_TEST_B"))
		os.Unsetenv("VAULT_SIGNER_TEST_A")
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		err := loadEnvFile([]string{"vault-signer", "--env-file", filepath.Join(t.TempDir(), "nope.env")})
		require.Error(t, err)
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		defer func() { _ = os.Chdir(wd) }()

		require.NoError(t, loadEnvFile([]string{"vault-signer", "address"}))
	})
}

func Test_SignerConfigFromContext(t *testing.T) {
	capture := func(args ...string) (*config.SignerConfig, error) {
		var cfg *config.SignerConfig
		var cfgErr error
		app := newApp()
		app.Commands = nil
		app.Action = func(c *cli.Context) error {
			cfg, cfgErr = signerConfigFromContext(c)
			return nil
		}
		require.NoError(t, app.Run(append([]string{"vault-signer"}, args...)))
		return cfg, cfgErr
	}

	t.Run("defaults", func(t *testing.T) {
		for _, name := range []string{config.EnvSignerKeyID, config.EnvSignerHashFunction} {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
		cfg, err := capture()
		require.NoError(t, err)
		assert.Equal(t, config.DefaultKeyId, cfg.KeyId)
		assert.Equal(t, config.HashFunction_Keccak256, cfg.HashFunction)
	})

	t.Run("flags override", func(t *testing.T) {
		cfg, err := capture("--key-id", "1234abcd", "--hash", "SHA256", "--rate-limit", "5")
		require.NoError(t, err)
		assert.Equal(t, "1234abcd", cfg.KeyId)
		assert.Equal(t, config.HashFunction_SHA256, cfg.HashFunction)
		assert.Equal(t, float64(5), cfg.MaxRequestsPerSecond)
	})

	t.Run("unknown hash is rejected", func(t *testing.T) {
		_, err := capture("--hash", "md5")
		require.Error(t, err)
	})
}

func Test_PersistenceConfigFromContext(t *testing.T) {
	for _, name := range []string{config.EnvSignerPersistence, config.EnvSignerDataDir} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	var cfg *config.PersistenceConfig
	app := newApp()
	app.Commands = nil
	app.Action = func(c *cli.Context) error {
		var err error
		cfg, err = persistenceConfigFromContext(c)
		return err
	}
	require.NoError(t, app.Run([]string{"vault-signer"}))

	// history must survive between runs, so the default is durable
	assert.Equal(t, config.PersistenceType_Badger, cfg.Type)
	assert.Equal(t, config.DefaultDataDir, cfg.DataDir)
}

func Test_Commands(t *testing.T) {
	t.Run("address prints the local key address", func(t *testing.T) {
		out, err := runApp(t, localArgs(t, "address")...)
		require.NoError(t, err)
		assert.Contains(t, out, tests.DevAccountAddress1)
	})

	t.Run("sign prints a signature recovering to the signer", func(t *testing.T) {
		out, err := runApp(t, localArgs(t, "sign", "--payload", "0x7472616e736665722031204554480a")...)
		require.NoError(t, err)
		assert.Contains(t, out, "Signature:")
		assert.Contains(t, out, "Ethereum:")
		assert.Contains(t, out, tests.DevAccountAddress1)
	})

	t.Run("sign accepts payloads without 0x", func(t *testing.T) {
		_, err := runApp(t, localArgs(t, "sign", "--payload", "deadbeef")...)
		require.NoError(t, err)
	})

	t.Run("sign rejects non hex payloads", func(t *testing.T) {
		_, err := runApp(t, localArgs(t, "sign", "--payload", "not-hex")...)
		require.Error(t, err)
	})

	t.Run("history lists persisted signatures", func(t *testing.T) {
		dataDir := filepath.Join(t.TempDir(), "data")
		base := []string{
			"--local-key", tests.DevAccountPrivateKey1,
			"--persistence", "badger",
			"--data-dir", dataDir,
		}

		out, err := runApp(t, append(base, "history")...)
		require.NoError(t, err)
		assert.Contains(t, out, "No signatures recorded")

		for _, payload := range []string{"0x01", "0x02", "0x03"} {
			_, err := runApp(t, append(base, "sign", "--payload", payload)...)
			require.NoError(t, err)
		}

		out, err = runApp(t, append(base, "history")...)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

		out, err = runApp(t, append(base, "history", "--limit", "1")...)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
	})

	t.Run("create-key needs KMS", func(t *testing.T) {
		_, err := runApp(t, localArgs(t, "create-key", "--name", "test")...)
		require.Error(t, err)
	})

	t.Run("balance rejects an invalid vault address", func(t *testing.T) {
		_, err := runApp(t, localArgs(t, "balance", "--vault", "0x1234")...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid vault address")
	})

	t.Run("invalid persistence type is rejected", func(t *testing.T) {
		_, err := runApp(t, "--persistence", "sqlite", "history")
		require.Error(t, err)
	})
}
