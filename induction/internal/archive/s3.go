// Package archive stores generated plans in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/metro-depot/fleet/induction/internal/attest"
	"github.com/metro-depot/fleet/induction/internal/planner"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver writes canonical plan JSON to
//
//	s3://<bucket>/<prefix>/induction/YYYY/MM/DD/<planID>.json
//
// keyed by planning date.
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader uploader
}

// NewS3Archiver picks up region and credentials from the environment.
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{bucket: bucket, prefix: prefix, uploader: manager.NewUploader(client)}, nil
}

// ObjectKey returns where a plan is stored.
func (a *S3Archiver) ObjectKey(fs planner.FleetStatus) string {
	date := fs.Summary.PlanningDate
	var year, month, day string
	if len(date) == len("2006-01-02") {
		year, month, day = date[0:4], date[5:7], date[8:10]
	} else {
		t := fs.GeneratedAt.UTC()
		year, month, day = fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), fmt.Sprintf("%02d", t.Day())
	}
	return path.Join(a.prefix, "induction", year, month, day, fs.PlanID.String()+".json")
}

// ArchivePlan uploads the plan and returns its object key.
func (a *S3Archiver) ArchivePlan(ctx context.Context, fs planner.FleetStatus) (string, error) {
	body, err := attest.Canonical(fs)
	if err != nil {
		return "", fmt.Errorf("canonicalize plan: %w", err)
	}
	key := a.ObjectKey(fs)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"planning-date": fs.Summary.PlanningDate,
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return key, nil
}
