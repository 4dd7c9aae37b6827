package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	appConfig "workshopdesk/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		f.body, _ = io.ReadAll(params.Body)
	}
	return &s3.PutObjectOutput{}, f.err
}

func TestArchive_AWS(t *testing.T) {
	putter := &fakePutter{}
	a := newS3Archiver(putter, appConfig.S3Config{Bucket: "desk", Region: "ap-southeast-1", Prefix: "imports/"})

	url, err := a.Archive(context.Background(), "w1/batch.csv", "text/csv", []byte("name,email\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://desk.s3.ap-southeast-1.amazonaws.com/imports/w1/batch.csv", url)
	assert.Equal(t, "desk", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "imports/w1/batch.csv", aws.ToString(putter.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(putter.input.ContentType))
	assert.Equal(t, int64(11), aws.ToInt64(putter.input.ContentLength))
	assert.Equal(t, "name,email\n", string(putter.body))
}

func TestArchive_CustomEndpoint(t *testing.T) {
	a := newS3Archiver(&fakePutter{}, appConfig.S3Config{Bucket: "desk", Region: "us-east-1", Endpoint: "http://localhost:9000/"})

	url, err := a.Archive(context.Background(), "x.xlsx", "application/octet-stream", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/desk/x.xlsx", url)
}

func TestArchive_Error(t *testing.T) {
	a := newS3Archiver(&fakePutter{err: errors.New("access denied")}, appConfig.S3Config{Bucket: "desk", Region: "us-east-1"})

	_, err := a.Archive(context.Background(), "x.csv", "text/csv", []byte("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewS3Archiver_Validation(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), appConfig.S3Config{Region: "us-east-1"})
	assert.Error(t, err)

	_, err = NewS3Archiver(context.Background(), appConfig.S3Config{Bucket: "desk"})
	assert.Error(t, err)

	_, err = NewS3Archiver(context.Background(), appConfig.S3Config{Bucket: "desk", Region: "us-east-1", Endpoint: "http://minio:9000"})
	assert.Error(t, err)
}
