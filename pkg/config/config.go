package config

import (
	"fmt"
	"math/big"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the vault signer
const (
	EnvSignerKeyID          = "VAULT_SIGNER_KEY_ID"
	EnvSignerRegion         = "VAULT_SIGNER_REGION"
	EnvSignerHashFunction   = "VAULT_SIGNER_HASH"
	EnvSignerRateLimit      = "VAULT_SIGNER_RATE_LIMIT"
	EnvSignerRPCURL         = "VAULT_SIGNER_RPC_URL"
	EnvSignerVerbose        = "VAULT_SIGNER_VERBOSE"
	EnvSignerPersistence    = "VAULT_SIGNER_PERSISTENCE"
	EnvSignerDataDir        = "VAULT_SIGNER_DATA_DIR"
	EnvSignerRedisAddress   = "VAULT_SIGNER_REDIS_ADDRESS"
	EnvSignerRedisPassword  = "VAULT_SIGNER_REDIS_PASSWORD"
	EnvSignerRedisDB        = "VAULT_SIGNER_REDIS_DB"
	EnvSignerRedisKeyPrefix = "VAULT_SIGNER_REDIS_KEY_PREFIX"
	EnvSignerEnvFile        = "VAULT_SIGNER_ENV_FILE"

	// EnvSignerLocalKey holds a hex private key that replaces the remote key.
	// Only meant for local chains.
	EnvSignerLocalKey = "VAULT_SIGNER_LOCAL_KEY"

	// EnvSepoliaRPCURL is read as a fallback for the RPC url so existing .env files keep working
	EnvSepoliaRPCURL = "SEPOLIA_RPC_URL"
)

const (
	DefaultKeyId  = "alias/HSM-Key"
	DefaultRegion = "us-east-1"
	DefaultRpcUrl = "http://localhost:8545"

	DefaultDataDir = "./data"
)

type HashFunction string

func (h HashFunction) String() string {
	return string(h)
}

const (
	HashFunction_Keccak256 HashFunction = "keccak256"
	HashFunction_SHA256    HashFunction = "sha256"
)

func GetSupportedHashFunctions() []HashFunction {
	return []HashFunction{HashFunction_Keccak256, HashFunction_SHA256}
}

// GetSupportedHashFunctionNames returns the supported hash functions as strings for CLI help and validation
func GetSupportedHashFunctionNames() []string {
	names := make([]string, 0, len(GetSupportedHashFunctions()))
	for _, h := range GetSupportedHashFunctions() {
		names = append(names, h.String())
	}
	return names
}

func IsSupportedHashFunction(h HashFunction) bool {
	for _, supported := range GetSupportedHashFunctions() {
		if h == supported {
			return true
		}
	}
	return false
}

// Wire values understood by the remote signing service
const (
	MessageType_Digest             = "DIGEST"
	SigningAlgorithm_ECDSA_SHA_256 = "ECDSA_SHA_256"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
	ChainId_Simulated       ChainId = 1337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
	ChainName_Simulated       ChainName = "simulated"
	ChainName_Unknown         ChainName = "unknown"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
	ChainId_Simulated:       ChainName_Simulated,
}

// GetChainName returns the name of a known chain, or ChainName_Unknown.
func GetChainName(chainId ChainId) ChainName {
	if name, ok := ChainIdToName[chainId]; ok {
		return name
	}
	return ChainName_Unknown
}

func IsKnownChain(chainId ChainId) bool {
	_, ok := ChainIdToName[chainId]
	return ok
}

// IsPublicEthereum reports whether the chain is a public Ethereum network
// where fee spikes need a larger buffer.
func IsPublicEthereum(chainId ChainId) bool {
	return chainId == ChainId_EthereumMainnet || chainId == ChainId_EthereumSepolia
}

// FeeParams controls how EIP-1559 fees are derived for a chain.
type FeeParams struct {
	FallbackGasTipCap *big.Int
	BaseFeeMultiplier int64
}

func GetFeeParamsForChain(chainId ChainId) *FeeParams {
	if IsPublicEthereum(chainId) {
		return &FeeParams{
			FallbackGasTipCap: big.NewInt(1500000000), // 1.5 gwei
			BaseFeeMultiplier: 3,
		}
	}
	return &FeeParams{
		FallbackGasTipCap: big.NewInt(1000000), // 0.001 gwei
		BaseFeeMultiplier: 2,
	}
}

// SignerConfig holds everything needed to talk to the remote signing key.
type SignerConfig struct {
	KeyId            string       `json:"keyId" yaml:"keyId"`
	Region           string       `json:"region" yaml:"region"`
	HashFunction     HashFunction `json:"hashFunction" yaml:"hashFunction"`
	SigningAlgorithm string       `json:"signingAlgorithm" yaml:"signingAlgorithm"`

	// MaxRequestsPerSecond throttles outbound signing calls. Zero disables throttling.
	MaxRequestsPerSecond float64 `json:"maxRequestsPerSecond" yaml:"maxRequestsPerSecond"`
	Burst                int     `json:"burst" yaml:"burst"`
}

func NewDefaultSignerConfig() *SignerConfig {
	return &SignerConfig{
		KeyId:            DefaultKeyId,
		Region:           DefaultRegion,
		HashFunction:     HashFunction_Keccak256,
		SigningAlgorithm: SigningAlgorithm_ECDSA_SHA_256,
	}
}

func (sc *SignerConfig) Validate() error {
	var allErrors field.ErrorList
	if sc.KeyId == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("keyId"), "keyId is required"))
	}
	if !IsSupportedHashFunction(sc.HashFunction) {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("hashFunction"), sc.HashFunction, GetSupportedHashFunctionNames()))
	}
	if sc.SigningAlgorithm != SigningAlgorithm_ECDSA_SHA_256 {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("signingAlgorithm"), sc.SigningAlgorithm, []string{SigningAlgorithm_ECDSA_SHA_256}))
	}
	if sc.MaxRequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxRequestsPerSecond"), sc.MaxRequestsPerSecond, "must not be negative"))
	}
	if sc.Burst < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("burst"), sc.Burst, "must not be negative"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type PersistenceConfig struct {
	Type           PersistenceType `json:"type" yaml:"type"`
	DataDir        string          `json:"dataDir" yaml:"dataDir"`
	RedisAddress   string          `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string          `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int             `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix string          `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
}

func (pc *PersistenceConfig) Validate() error {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if pc.DataDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataDir"), "dataDir is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 || pc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDb"), pc.RedisDB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), pc.Type, []string{
			string(PersistenceType_Memory),
			string(PersistenceType_Badger),
			string(PersistenceType_Redis),
		}))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ChainConfig describes the node the signer submits transactions to.
type ChainConfig struct {
	RpcUrl string `json:"rpcUrl" yaml:"rpcUrl"`
}

func (cc *ChainConfig) Validate() error {
	var allErrors field.ErrorList
	if cc.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required"))
	} else if !strings.HasPrefix(cc.RpcUrl, "http") && !strings.HasPrefix(cc.RpcUrl, "ws") {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rpcUrl"), cc.RpcUrl, "must be an http(s) or ws(s) url"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil), %d (simulated)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil, ChainId_Simulated)
}
