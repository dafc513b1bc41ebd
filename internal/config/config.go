// Package config handles configuration for the onboarding CLI, including
// defaults, JSON overlay, environment variables, and command-line flags.
package config

import "time"

// Config holds runtime settings for a batch onboarding run.
//
// Fields:
//   - UsersFile: path to the static user batch (JSON).
//   - TokenFile: path the issued token set is persisted to.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test defaults in prod.
//   - TokenTTL: token lifetime; the exp claim is issue time plus this value.
//   - CAEndpoint / CAAdminUser / CAAdminSecret: identity service and the
//     admin identity used to register users.
//   - GatewayEndpoint: ledger gateway the addUser transaction is submitted through.
//   - Peers / Channel / Chaincode: ledger submission targets.
//   - AttributeWhitelist: user-record attributes forwarded to the identity service.
//   - Workers: 1 means strictly sequential processing; >1 enables a bounded pool.
//   - RetryAttempts / RetryBackoff: adapter-internal retry policy.
//   - OutcomesDSN: optional PostgreSQL DSN for outcome telemetry.
//   - S3Bucket / S3Region / S3BaseEndpoint / S3RootUser / S3RootPassword:
//     optional object storage the token file is uploaded to for distribution.
type Config struct {
	UsersFile string `env:"ONBOARD_USERS_FILE"`
	TokenFile string `env:"ONBOARD_TOKEN_FILE"`

	SecretKey string        `env:"ONBOARD_SECRET_KEY"`
	TokenTTL  time.Duration `env:"ONBOARD_TOKEN_TTL"`

	CAEndpoint    string `env:"ONBOARD_CA_ENDPOINT"`
	CAAdminUser   string `env:"ONBOARD_CA_ADMIN_USER"`
	CAAdminSecret string `env:"ONBOARD_CA_ADMIN_SECRET"`

	GatewayEndpoint string   `env:"ONBOARD_GATEWAY_ENDPOINT"`
	Peers           []string `env:"ONBOARD_PEERS" envSeparator:","`
	Channel         string   `env:"ONBOARD_CHANNEL"`
	Chaincode       string   `env:"ONBOARD_CHAINCODE"`
	PeerHealthCheck bool     `env:"ONBOARD_PEER_HEALTH_CHECK"`

	AttributeWhitelist []string `env:"ONBOARD_ATTRIBUTE_WHITELIST" envSeparator:","`

	Workers       int           `env:"ONBOARD_WORKERS"`
	RetryAttempts int           `env:"ONBOARD_RETRY_ATTEMPTS"`
	RetryBackoff  time.Duration `env:"ONBOARD_RETRY_BACKOFF"`

	OutcomesDSN string `env:"ONBOARD_OUTCOMES_DSN"`

	S3Bucket       string `env:"ONBOARD_S3_BUCKET"`
	S3Region       string `env:"ONBOARD_S3_REGION"`
	S3BaseEndpoint string `env:"ONBOARD_S3_BASE_ENDPOINT"`
	S3RootUser     string `env:"ONBOARD_S3_ROOT_USER"`
	S3RootPassword string `env:"ONBOARD_S3_ROOT_PASSWORD"`
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.UsersFile = "artifacts/users.json"
	c.TokenFile = "artifacts/tokens.json"
	c.SecretKey = ""
	c.TokenTTL = 1 * time.Hour
	c.CAEndpoint = "http://127.0.0.1:7054"
	c.CAAdminUser = "admin"
	c.CAAdminSecret = "adminpw"
	c.GatewayEndpoint = "http://127.0.0.1:4000"
	c.Peers = []string{"127.0.0.1:7051"}
	c.Channel = "mychannel"
	c.Chaincode = "auction"
	c.PeerHealthCheck = false
	c.AttributeWhitelist = []string{"email", "org"}
	c.Workers = 1
	c.RetryAttempts = 3
	c.RetryBackoff = 500 * time.Millisecond
	c.OutcomesDSN = ""
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.S3RootUser = ""
	c.S3RootPassword = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, environment variables, and finally
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
