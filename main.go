package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"carbid/adapters/auth"
	"carbid/adapters/oidc"
	internalS3 "carbid/adapters/s3"
	"carbid/marketplace"
	"carbid/models"
)

func main() {
	args := ParseArgs()
	if !args.Validate() {
		panic("missing arguments")
	}
	config := args.Config

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s",
		config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: config.DB.Schema + ".",
		},
	})
	if err != nil {
		panic(err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.ExternalIdentity{},
		&models.Car{},
		&models.Auction{},
		&models.Bid{},
		&models.Setting{},
	); err != nil {
		panic(err)
	}

	tokens := auth.NewTokenIssuer([]byte(config.Auth.TokenSecret), config.Auth.TokenTTL)
	opts := []marketplace.ServiceOption{}

	// 初始化S3客戶端
	if config.S3.Endpoint != "" {
		s3Cfg, err := awsCfg.LoadDefaultConfig(
			context.Background(),
			awsCfg.WithBaseEndpoint(config.S3.Endpoint),
			awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.S3.AccessKeyID, config.S3.SecretAccessKey, "")),
			awsCfg.WithRegion("auto"),
		)
		if err != nil {
			panic(err)
		}
		blobs, err := internalS3.NewBlobStore(awsS3.NewFromConfig(s3Cfg), config.S3.Bucket, config.S3.PublicBaseURL)
		if err != nil {
			panic(err)
		}
		opts = append(opts, marketplace.WithBlobStore(blobs))
	}

	// 初始化Redis連線
	if config.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		opts = append(opts, marketplace.WithRedis(redisClient, config.Redis.KeyPrefix))
	}

	// 初始化OIDC提供者
	for name, providerConfig := range config.OIDC.Providers {
		provider, err := oidc.NewProvider(providerConfig.IssuerURL, providerConfig.ClientID, providerConfig.ClientSecret)
		if err != nil {
			panic(err)
		}
		opts = append(opts, marketplace.WithOIDCProvider(name, provider))
	}

	svc := marketplace.NewService(db, tokens, opts...)

	// 啟動過期拍賣掃描
	sweeper := marketplace.NewSweeper(svc, marketplace.WithSweepInterval(config.Sweep.Interval))
	sweeper.Start()
	defer sweeper.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	slog.Info("Shutting down")
}
