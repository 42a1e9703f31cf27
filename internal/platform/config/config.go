package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkgstrings "kycgate/pkg/platform/strings"
)

// Config is the process configuration, assembled once in main and handed to
// constructors. Nothing below main reads the environment directly.
type Config struct {
	Environment string
	Server      Server
	Log         LogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	KYC         KYCConfig
	Providers   ProvidersConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	JWTLeeway       time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// DatabaseConfig selects postgres when URL is set; memory stores otherwise.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the distributed submission guard when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables status-change events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string
	StatusTopic string
	Partitions  int32
	Replication int16
}

// KYCConfig tunes the verification pipeline.
type KYCConfig struct {
	StaleAfter      time.Duration
	PipelineTimeout time.Duration
	GuardTTL        time.Duration
	UploadDir       string
	MaxFileBytes    int64
	SkipCredential  bool
}

type ProvidersConfig struct {
	AI     AIConfig
	Aries  AriesConfig
	IPFS   IPFSConfig
	Ledger LedgerConfig
}

type AIConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries uint64
	UseStub    bool
}

type AriesConfig struct {
	AdminURL     string
	APIKey       string
	ConnectionID string
	CredDefID    string
	Timeout      time.Duration
}

// IPFSConfig Mode is one of "kubo", "local" or "disabled".
type IPFSConfig struct {
	Mode       string
	APIURL     string
	GatewayURL string
	LocalDir   string
	Timeout    time.Duration
}

type LedgerConfig struct {
	RPCURL          string
	ContractAddress string
	FromAddress     string
	Timeout         time.Duration
	ReceiptPoll     time.Duration
	ReceiptTimeout  time.Duration
	UseStub         bool
}

// IsProduction gates the real-credential requirement.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// LoadDotEnv copies KEY=VALUE pairs from the given files (".env" when none)
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Environment: envString("APP_ENV", "development"),
		Server: Server{
			Addr:            envString("KYC_ADDR", ":8080"),
			JWTSigningKey:   envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:       envString("JWT_ISSUER", "kycgate"),
			JWTAudience:     envString("JWT_AUDIENCE", "kycgate-api"),
			JWTLeeway:       envDuration("JWT_LEEWAY", 30*time.Second),
			ReadTimeout:     envDuration("HTTP_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:    envDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     envList("KAFKA_BROKERS"),
			StatusTopic: envString("KAFKA_STATUS_TOPIC", "kyc.verification.status"),
			Partitions:  int32(envInt("KAFKA_STATUS_PARTITIONS", 3)),
			Replication: int16(envInt("KAFKA_STATUS_REPLICATION", 1)),
		},
		KYC: KYCConfig{
			StaleAfter:      envDuration("KYC_STALE_AFTER", 10*time.Minute),
			PipelineTimeout: envDuration("KYC_PIPELINE_TIMEOUT", 5*time.Minute),
			GuardTTL:        envDuration("KYC_GUARD_TTL", 30*time.Second),
			UploadDir:       envString("KYC_UPLOAD_DIR", "uploads/kyc"),
			MaxFileBytes:    int64(envInt("KYC_MAX_FILE_BYTES", 10<<20)),
			SkipCredential:  envBool("SKIP_ARIES", false),
		},
		Providers: ProvidersConfig{
			AI: AIConfig{
				URL:        envString("AI_SERVICE_URL", "http://localhost:8000"),
				Timeout:    envDuration("AI_SERVICE_TIMEOUT", 90*time.Second),
				MaxRetries: uint64(envInt("AI_SERVICE_MAX_RETRIES", 2)),
				UseStub:    envBool("AI_SERVICE_STUB", false),
			},
			Aries: AriesConfig{
				AdminURL:     envString("ARIES_ADMIN_URL", "http://localhost:8031"),
				APIKey:       os.Getenv("ARIES_ADMIN_API_KEY"),
				ConnectionID: os.Getenv("ARIES_CONNECTION_ID"),
				CredDefID:    os.Getenv("ARIES_CRED_DEF_ID"),
				Timeout:      envDuration("ARIES_TIMEOUT", 30*time.Second),
			},
			IPFS: IPFSConfig{
				Mode:       envString("IPFS_MODE", "local"),
				APIURL:     envString("IPFS_API_URL", "http://localhost:5001"),
				GatewayURL: envString("IPFS_GATEWAY_URL", "https://ipfs.io/ipfs"),
				LocalDir:   envString("IPFS_LOCAL_DIR", "uploads/ipfs"),
				Timeout:    envDuration("IPFS_TIMEOUT", 60*time.Second),
			},
			Ledger: LedgerConfig{
				RPCURL:          envString("BLOCKCHAIN_RPC_URL", "http://localhost:8545"),
				ContractAddress: os.Getenv("KYC_CONTRACT_ADDRESS"),
				FromAddress:     os.Getenv("BLOCKCHAIN_FROM_ADDRESS"),
				Timeout:         envDuration("BLOCKCHAIN_TIMEOUT", 30*time.Second),
				ReceiptPoll:     envDuration("BLOCKCHAIN_RECEIPT_POLL", time.Second),
				ReceiptTimeout:  envDuration("BLOCKCHAIN_RECEIPT_TIMEOUT", time.Minute),
				UseStub:         envBool("BLOCKCHAIN_STUB", false),
			},
		},
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	return pkgstrings.DedupeAndTrim(strings.Split(raw, ","))
}
