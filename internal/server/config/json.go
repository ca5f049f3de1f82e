package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophblog/internal/flagx"
	"github.com/dmitrijs2005/gophblog/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from a zero value.
type JsonConfig struct {
	HTTPAddr                      string          `json:"http_addr"`
	GRPCHealthAddr                string          `json:"grpc_health_addr"`
	DatabaseDSN                   string          `json:"database_dsn"`
	SecretKey                     string          `json:"secret_key"`
	IdentityTokenValidityDuration *timex.Duration `json:"identity_token_validity_duration"`
	BcryptCost                    int             `json:"bcrypt_cost"`
	ClientDomain                  string          `json:"client_domain"`
	Production                    *bool           `json:"production"`
	LogLevel                      string          `json:"log_level"`
	LogFormat                     string          `json:"log_format"`
	S3RootUser                    string          `json:"s3_root_user"`
	S3RootPassword                string          `json:"s3_root_password"`
	S3Bucket                      string          `json:"s3_bucket"`
	S3Region                      string          `json:"s3_region"`
	S3BaseEndpoint                string          `json:"s3_base_endpoint"`
	S3PublicURL                   string          `json:"s3_public_url"`
	SMTPHost                      string          `json:"smtp_host"`
	SMTPPort                      int             `json:"smtp_port"`
	SMTPUser                      string          `json:"smtp_user"`
	SMTPPassword                  string          `json:"smtp_password"`
	SMTPFrom                      string          `json:"smtp_from"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Only fields present in the file are applied. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.IdentityTokenValidityDuration != nil {
		config.IdentityTokenValidityDuration = c.IdentityTokenValidityDuration.Duration
	}
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.ClientDomain, c.ClientDomain)
	if c.Production != nil {
		config.Production = *c.Production
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicURL, c.S3PublicURL)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
