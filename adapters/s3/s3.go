package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore 將位元組上傳到 S3 並回傳可公開存取的 URL
// 市集核心只保存回傳的 URL，從不保存原始位元組
type BlobStore struct {
	// Client 是 S3 客戶端。
	Client *s3.Client
	// Bucket 是 S3 存儲桶的名稱。
	Bucket string
	// PublicEndpoint 是 S3 存儲桶的公開 Endpoint。
	PublicEndpoint *url.URL
}

func NewBlobStore(client *s3.Client, bucket, publicBaseURL string) (*BlobStore, error) {
	const op = "NewBlobStore"
	publicEndpoint, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse public base URL, err=%w", op, err)
	}
	return &BlobStore{Client: client, Bucket: bucket, PublicEndpoint: publicEndpoint}, nil
}

// Put 上傳檔案內容到指定路徑並回傳公開 URL
func (s *BlobStore) Put(ctx context.Context, path, contentType string, content []byte) (string, error) {
	const op = "Put"
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to upload file to S3, err=%w", op, err)
	}
	uri := *s.PublicEndpoint
	uri.Path = path
	return uri.String(), nil
}
