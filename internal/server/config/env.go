package config

import (
	"github.com/spf13/viper"
)

// envPrefix namespaces environment variables, e.g. BLOG_DATABASE_DSN.
const envPrefix = "BLOG"

// parseEnv overlays BLOG_* environment variables onto config. Only variables
// that are set are applied.
func parseEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	envString(v, "http_addr", &config.HTTPAddr)
	envString(v, "grpc_health_addr", &config.GRPCHealthAddr)
	envString(v, "database_dsn", &config.DatabaseDSN)
	envString(v, "secret_key", &config.SecretKey)
	if v.IsSet("identity_token_validity_duration") {
		config.IdentityTokenValidityDuration = v.GetDuration("identity_token_validity_duration")
	}
	envInt(v, "bcrypt_cost", &config.BcryptCost)
	envString(v, "client_domain", &config.ClientDomain)
	if v.IsSet("production") {
		config.Production = v.GetBool("production")
	}
	envString(v, "log_level", &config.LogLevel)
	envString(v, "log_format", &config.LogFormat)
	envString(v, "s3_root_user", &config.S3RootUser)
	envString(v, "s3_root_password", &config.S3RootPassword)
	envString(v, "s3_bucket", &config.S3Bucket)
	envString(v, "s3_region", &config.S3Region)
	envString(v, "s3_base_endpoint", &config.S3BaseEndpoint)
	envString(v, "s3_public_url", &config.S3PublicURL)
	envString(v, "smtp_host", &config.SMTPHost)
	envInt(v, "smtp_port", &config.SMTPPort)
	envString(v, "smtp_user", &config.SMTPUser)
	envString(v, "smtp_password", &config.SMTPPassword)
	envString(v, "smtp_from", &config.SMTPFrom)
}

func envString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func envInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}
