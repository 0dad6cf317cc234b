package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client used by S3Vault.
type s3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Vault stores notes as objects under a bucket prefix. Folders are
// zero-byte objects whose key ends in "/".
type S3Vault struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Vault creates a vault on bucket/prefix using the default AWS
// credential chain.
func NewS3Vault(ctx context.Context, bucket, prefix, region string) (*S3Vault, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return newS3VaultWithClient(client, bucket, prefix), nil
}

func newS3VaultWithClient(client s3API, bucket, prefix string) *S3Vault {
	return &S3Vault{client: client, bucket: bucket, prefix: Clean(prefix)}
}

// ParseS3URL splits "s3://bucket/some/prefix" into bucket and prefix.
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url %q, want s3://bucket/prefix", raw)
	}
	return u.Host, Clean(u.Path), nil
}

func (v *S3Vault) key(p string) string {
	return Join(v.prefix, p)
}

func (v *S3Vault) rel(key string) string {
	if v.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, v.prefix+"/")
}

func (v *S3Vault) list(ctx context.Context, prefix string, fn func(key string)) error {
	p := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			fn(aws.ToString(obj.Key))
		}
	}
	return nil
}

func (v *S3Vault) listPrefix() string {
	if v.prefix == "" {
		return ""
	}
	return v.prefix + "/"
}

func (v *S3Vault) NotePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := v.list(ctx, v.listPrefix(), func(key string) {
		if isNote(key) {
			paths = append(paths, v.rel(key))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (v *S3Vault) headExists(ctx context.Context, key string) (bool, error) {
	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

func (v *S3Vault) Exists(ctx context.Context, p string) (bool, error) {
	key := v.key(p)
	ok, err := v.headExists(ctx, key)
	if err != nil || ok {
		return ok, err
	}
	return v.headExists(ctx, key+"/")
}

func (v *S3Vault) put(ctx context.Context, key, content string) error {
	_, err := v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(v.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	})
	return err
}

func (v *S3Vault) CreateFolder(ctx context.Context, p string) error {
	if err := v.put(ctx, v.key(p)+"/", ""); err != nil {
		return fmt.Errorf("create folder %s: %w", p, err)
	}
	return nil
}

func (v *S3Vault) CreateNote(ctx context.Context, p, content string) error {
	key := v.key(p)
	exists, err := v.headExists(ctx, key)
	if err != nil {
		return fmt.Errorf("create note %s: %w", p, err)
	}
	if exists {
		return fmt.Errorf("create note %s: %w", p, ErrExists)
	}
	if err := v.put(ctx, key, content); err != nil {
		return fmt.Errorf("create note %s: %w", p, err)
	}
	return nil
}

func (v *S3Vault) DeleteNote(ctx context.Context, p string) error {
	if Clean(p) == "" {
		return fmt.Errorf("delete note: %w", ErrRootDelete)
	}
	key := v.key(p)
	keys := []string{key}
	if err := v.list(ctx, key+"/", func(k string) { keys = append(keys, k) }); err != nil {
		return fmt.Errorf("delete note %s: %w", p, err)
	}
	for _, k := range keys {
		_, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(k),
		})
		if err != nil {
			return fmt.Errorf("delete note %s: %w", p, err)
		}
		slog.Debug("deleted object", "bucket", v.bucket, "key", k)
	}
	return nil
}
