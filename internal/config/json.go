package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/auctionledger/onboard/internal/flagx"
	"github.com/auctionledger/onboard/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration for interval fields, which allows parsing
// both string values such as "1h" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config struct.
//
// All fields are pointers so that keys absent from the file leave the
// corresponding Config value untouched.
type JsonConfig struct {
	UsersFile          *string         `json:"users_file"`
	TokenFile          *string         `json:"token_file"`
	SecretKey          *string         `json:"secret_key"`
	TokenTTL           *timex.Duration `json:"token_ttl"`
	CAEndpoint         *string         `json:"ca_endpoint"`
	CAAdminUser        *string         `json:"ca_admin_user"`
	CAAdminSecret      *string         `json:"ca_admin_secret"`
	GatewayEndpoint    *string         `json:"gateway_endpoint"`
	Peers              []string        `json:"peers"`
	Channel            *string         `json:"channel"`
	Chaincode          *string         `json:"chaincode"`
	PeerHealthCheck    *bool           `json:"peer_health_check"`
	AttributeWhitelist []string        `json:"attribute_whitelist"`
	Workers            *int            `json:"workers"`
	RetryAttempts      *int            `json:"retry_attempts"`
	RetryBackoff       *timex.Duration `json:"retry_backoff"`
	OutcomesDSN        *string         `json:"outcomes_dsn"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
	S3RootUser         *string         `json:"s3_root_user"`
	S3RootPassword     *string         `json:"s3_root_password"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. An unreadable or invalid
// file panics: a run with a half-applied config must not start.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&config.UsersFile, c.UsersFile)
	setString(&config.TokenFile, c.TokenFile)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.CAEndpoint, c.CAEndpoint)
	setString(&config.CAAdminUser, c.CAAdminUser)
	setString(&config.CAAdminSecret, c.CAAdminSecret)
	setString(&config.GatewayEndpoint, c.GatewayEndpoint)
	setString(&config.Channel, c.Channel)
	setString(&config.Chaincode, c.Chaincode)
	setString(&config.OutcomesDSN, c.OutcomesDSN)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)

	if c.TokenTTL != nil {
		config.TokenTTL = time.Duration(c.TokenTTL.Duration)
	}
	if c.RetryBackoff != nil {
		config.RetryBackoff = time.Duration(c.RetryBackoff.Duration)
	}
	if c.Peers != nil {
		config.Peers = c.Peers
	}
	if c.AttributeWhitelist != nil {
		config.AttributeWhitelist = c.AttributeWhitelist
	}
	if c.PeerHealthCheck != nil {
		config.PeerHealthCheck = *c.PeerHealthCheck
	}
	if c.Workers != nil {
		config.Workers = *c.Workers
	}
	if c.RetryAttempts != nil {
		config.RetryAttempts = *c.RetryAttempts
	}
}
