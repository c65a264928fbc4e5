package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metro-depot/fleet/induction/internal/planner"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &manager.UploadOutput{}, nil
}

func plan() planner.FleetStatus {
	verdicts := []planner.Verdict{{TrainsetID: "TS-2010", Status: planner.StatusStandby, ConflictAlerts: []string{}}}
	return planner.FleetStatus{
		PlanID:      uuid.MustParse("0b8f3f43-6a39-4a53-8f27-7c6f2f7b2a10"),
		Trainsets:   verdicts,
		Summary:     planner.Summarize(verdicts, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)),
		GeneratedAt: time.Date(2025, 3, 3, 23, 0, 0, 0, time.UTC),
	}
}

func TestArchivePlan(t *testing.T) {
	up := &fakeUploader{}
	a := &S3Archiver{bucket: "depot-plans", prefix: "prod", uploader: up}

	key, err := a.ArchivePlan(context.Background(), plan())
	require.NoError(t, err)
	assert.Equal(t, "prod/induction/2025/03/04/0b8f3f43-6a39-4a53-8f27-7c6f2f7b2a10.json", key)
	assert.Equal(t, "depot-plans", aws.ToString(up.input.Bucket))
	assert.Equal(t, key, aws.ToString(up.input.Key))
	assert.Equal(t, s3types.ServerSideEncryptionAes256, up.input.ServerSideEncryption)

	var decoded planner.FleetStatus
	require.NoError(t, json.Unmarshal(up.body, &decoded))
	assert.Equal(t, "TS-2010", decoded.Trainsets[0].TrainsetID)
	assert.Contains(t, string(up.body), `"generated_at":"2025-03-03T23:00:00Z"`)
}

func TestArchivePlanUploadError(t *testing.T) {
	a := &S3Archiver{bucket: "b", uploader: &fakeUploader{err: errors.New("access denied")}}
	_, err := a.ArchivePlan(context.Background(), plan())
	assert.ErrorContains(t, err, "access denied")
}

func TestNewS3ArchiverRequiresBucket(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), "", "x")
	assert.Error(t, err)
}
