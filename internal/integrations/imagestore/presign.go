// Package imagestore resolves uploaded image references for the completion
// service. Object keys become short-lived presigned S3 GET URLs; absolute
// http(s) URLs pass through unchanged.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultExpiry = 15 * time.Minute

// presignAPI is satisfied by *s3.PresignClient.
type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Resolver struct {
	api    presignAPI
	bucket string
	prefix string
	expiry time.Duration
}

type Option func(*Resolver)

// WithKeyPrefix restricts resolvable keys to those under prefix.
func WithKeyPrefix(prefix string) Option {
	return func(r *Resolver) { r.prefix = strings.Trim(strings.TrimSpace(prefix), "/") }
}

func WithExpiry(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.expiry = d
		}
	}
}

func NewResolver(api presignAPI, bucket string, opts ...Option) (*Resolver, error) {
	if api == nil {
		return nil, errors.New("imagestore: presign api must not be nil")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("imagestore: bucket must not be empty")
	}
	r := &Resolver{api: api, bucket: bucket, expiry: defaultExpiry}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("imagestore: empty reference")
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != "" {
		return ref, nil
	}

	key, err := r.cleanKey(ref)
	if err != nil {
		return "", err
	}
	out, err := r.api.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		return "", fmt.Errorf("imagestore: presign %q: %w", key, err)
	}
	return out.URL, nil
}

func (r *Resolver) cleanKey(ref string) (string, error) {
	if strings.Contains(ref, "://") {
		return "", fmt.Errorf("imagestore: unsupported reference %q", ref)
	}
	key := strings.TrimPrefix(path.Clean("/"+ref), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("imagestore: invalid key %q", ref)
	}
	if r.prefix != "" && !strings.HasPrefix(key, r.prefix+"/") {
		return "", fmt.Errorf("imagestore: key %q outside %q", key, r.prefix)
	}
	return key, nil
}
