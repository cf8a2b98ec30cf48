package marketplace

import "time"

type Config struct {
	DB    DBConfig
	S3    S3Config
	Auth  AuthConfig
	OIDC  OIDCConfig
	Redis RedisConfig
	Sweep SweepConfig
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Bucket          string
	PublicBaseURL   string
}

type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

type OIDCConfig struct {
	Providers map[string]OIDCProviderConfig
}

type OIDCProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type SweepConfig struct {
	Interval time.Duration
}
