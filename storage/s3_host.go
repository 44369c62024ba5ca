package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"listing-publisher/config"
)

// S3Host stores renditions in an S3 bucket or a MinIO endpoint.
type S3Host struct {
	client     s3iface.S3API
	bucket     string
	publicBase string
}

// NewS3Host opens a session from cfg. Setting AWS_ENDPOINT switches to
// path-style addressing for MinIO.
func NewS3Host(cfg *config.Config) (*S3Host, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.AWSRegion),
	}
	if cfg.AWSAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKey, cfg.AWSSecretKey, "")
	}
	if cfg.AWSEndpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.AWSEndpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
		if cfg.S3UseSSL == "false" {
			awsConfig.DisableSSL = aws.Bool(true)
		}
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("s3 host: create session: %w", err)
	}
	return NewS3HostWithClient(s3.New(sess), cfg.S3Bucket, cfg.S3PublicBase), nil
}

// NewS3HostWithClient wires an existing client. An empty publicBase derives
// URLs from the client's endpoint and region.
func NewS3HostWithClient(client s3iface.S3API, bucket, publicBase string) *S3Host {
	h := &S3Host{client: client, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}
	if h.publicBase == "" {
		h.publicBase = defaultPublicBase(client, bucket)
	}
	return h
}

// Put uploads data with a public-read ACL so the platforms can fetch it.
func (h *S3Host) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := h.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         aws.String(s3.ObjectCannedACLPublicRead),
	})
	if err != nil {
		return "", fmt.Errorf("s3 host: upload %q: %w", key, err)
	}
	return h.publicBase + "/" + key, nil
}

// Delete removes key from the bucket.
func (h *S3Host) Delete(ctx context.Context, key string) error {
	_, err := h.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 host: delete %q: %w", key, err)
	}
	return nil
}

func defaultPublicBase(client s3iface.S3API, bucket string) string {
	svc, ok := client.(*s3.S3)
	if !ok {
		return "https://" + bucket + ".s3.amazonaws.com"
	}

	endpoint := aws.StringValue(svc.Config.Endpoint)
	if endpoint != "" && !strings.Contains(endpoint, "amazonaws.com") {
		protocol := "https"
		if aws.BoolValue(svc.Config.DisableSSL) {
			protocol = "http"
		}
		endpoint = strings.TrimPrefix(endpoint, "http://")
		endpoint = strings.TrimPrefix(endpoint, "https://")
		return fmt.Sprintf("%s://%s/%s", protocol, endpoint, bucket)
	}

	region := aws.StringValue(svc.Config.Region)
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}
