package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"carbid/marketplace"
)

func ParseArgs() Args {
	// auth config
	pflag.String("auth-token-secret", "", "")
	pflag.Duration("auth-token-ttl", 72*time.Hour, "")

	// oidc config
	pflag.String("oidc-provider-name", "", "")
	pflag.String("oidc-issuer-url", "", "")
	pflag.String("oidc-client-id", "", "")
	pflag.String("oidc-client-secret", "", "")

	// s3 config
	pflag.String("s3-endpoint", "", "")
	pflag.String("s3-bucket", "", "")
	pflag.String("s3-public-base-url", "", "")
	pflag.String("s3-access-key-id", "", "")
	pflag.String("s3-secret-access-key", "", "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")
	pflag.String("redis-key-prefix", "carbid:", "")

	// sweep config
	pflag.Duration("sweep-interval", time.Minute, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("CARBID")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	args := Args{
		OIDCProviderName: viper.GetString("oidc-provider-name"),
		Config: marketplace.Config{
			Auth: marketplace.AuthConfig{
				TokenSecret: viper.GetString("auth-token-secret"),
				TokenTTL:    viper.GetDuration("auth-token-ttl"),
			},
			S3: marketplace.S3Config{
				Endpoint:        viper.GetString("s3-endpoint"),
				Bucket:          viper.GetString("s3-bucket"),
				PublicBaseURL:   viper.GetString("s3-public-base-url"),
				AccessKeyID:     viper.GetString("s3-access-key-id"),
				SecretAccessKey: viper.GetString("s3-secret-access-key"),
			},
			DB: marketplace.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Redis: marketplace.RedisConfig{
				Addr:      viper.GetString("redis-addr"),
				Password:  viper.GetString("redis-password"),
				DB:        viper.GetInt("redis-db"),
				KeyPrefix: viper.GetString("redis-key-prefix"),
			},
			Sweep: marketplace.SweepConfig{
				Interval: viper.GetDuration("sweep-interval"),
			},
		},
	}
	if args.OIDCProviderName != "" {
		args.Config.OIDC.Providers = map[string]marketplace.OIDCProviderConfig{
			args.OIDCProviderName: {
				IssuerURL:    viper.GetString("oidc-issuer-url"),
				ClientID:     viper.GetString("oidc-client-id"),
				ClientSecret: viper.GetString("oidc-client-secret"),
			},
		}
	}
	return args
}

type Args struct {
	OIDCProviderName string
	Config           marketplace.Config
}

func (args Args) Validate() bool {
	return args.Config.Auth.TokenSecret != "" &&
		args.Config.DB.User != "" &&
		args.Config.DB.Host != "" &&
		args.Config.DB.Database != ""
}
