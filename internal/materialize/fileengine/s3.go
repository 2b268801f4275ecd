package fileengine

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fetchS3 downloads the object named by r.h.Path (bucket/key, spec.md §6
// s3:// URIs) into a local temp file, applying any fs_opts captured from the
// environment by handle.FromURI (access keys, region, custom endpoint).
func (r *Reader) fetchS3(ctx context.Context) (string, func(), error) {
	bucket, key, err := splitBucketKey(r.h.Path)
	if err != nil {
		return "", nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, s3ConfigOptions(r.h.FsOpts)...)
	if err != nil {
		return "", nil, fmt.Errorf("fileengine: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := r.h.FsOpts["endpoint_url"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		} else if endpoint := r.h.FsOpts["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if r.h.FsOpts["url_style"] == "path" {
			o.UsePathStyle = true
		}
	})

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return "", nil, fmt.Errorf("fileengine: s3 GetObject s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return r.stageToTemp(out.Body)
}

func s3ConfigOptions(opts map[string]string) []func(*awsconfig.LoadOptions) error {
	var out []func(*awsconfig.LoadOptions) error
	if region := opts["region"]; region != "" {
		out = append(out, awsconfig.WithRegion(region))
	}
	if ak, sk := opts["access_key_id"], opts["secret_access_key"]; ak != "" && sk != "" {
		out = append(out, awsconfig.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: ak, SecretAccessKey: sk, SessionToken: opts["session_token"]}, nil
			}),
		))
	}
	return out
}

func splitBucketKey(path string) (bucket, key string, err error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("fileengine: s3 path %q missing bucket/key separator", path)
}
