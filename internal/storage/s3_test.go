package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects  map[string]bool
	headErr  error
	headKeys []string
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.headKeys = append(f.headKeys, key)
	if f.headErr != nil {
		return nil, f.headErr
	}
	if !f.objects[key] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

type fakePresigner struct {
	ttl time.Duration
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.ttl = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL: fmt.Sprintf("https://%s.s3.amazonaws.com/%s?X-Amz-Date=20991231T000000Z&X-Amz-Expires=60",
			aws.ToString(in.Bucket), aws.ToString(in.Key)),
		Method: "GET",
	}, nil
}

func newTestStore(objects ...string) (*S3Store, *fakeS3, *fakePresigner) {
	fs := &fakeS3{objects: map[string]bool{}}
	for _, o := range objects {
		fs.objects[o] = true
	}
	fp := &fakePresigner{}
	s := NewS3StoreWithClients("docs", fs, fp, time.Hour)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s, fs, fp
}

func TestS3Store_Probe(t *testing.T) {
	s, fs, _ := newTestStore("out/a.pdf")
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"virtual hosted", "https://docs.s3.eu-west-1.amazonaws.com/out/a.pdf?X-Amz-Date=20240601T110000Z&X-Amz-Expires=7200", true},
		{"path style", "http://localhost:9000/docs/out/a.pdf?X-Amz-Date=20240601T110000Z&X-Amz-Expires=7200", true},
		{"expired", "https://docs.s3.amazonaws.com/out/a.pdf?X-Amz-Date=20240601T110000Z&X-Amz-Expires=3600", false},
		{"missing object", "https://docs.s3.amazonaws.com/out/b.pdf", false},
		{"other bucket", "http://localhost:9000/other/out/a.pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.Probe(ctx, tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
	assert.Contains(t, fs.headKeys, "out/a.pdf")
}

func TestS3Store_ProbeSurfacesTransportErrors(t *testing.T) {
	s, fs, _ := newTestStore("out/a.pdf")
	fs.headErr = errors.New("connection reset")

	_, err := s.Probe(context.Background(), "https://docs.s3.amazonaws.com/out/a.pdf")
	assert.Error(t, err)
}

func TestS3Store_Refresh(t *testing.T) {
	s, _, fp := newTestStore("out/a.pdf")

	fresh, err := s.Refresh(context.Background(), "https://docs.s3.amazonaws.com/out/a.pdf?X-Amz-Date=20200101T000000Z&X-Amz-Expires=1")
	require.NoError(t, err)
	assert.Contains(t, fresh, "/out/a.pdf")
	assert.Equal(t, time.Hour, fp.ttl)

	ok, err := s.Probe(context.Background(), fresh)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Refresh(context.Background(), "https://elsewhere.example.com/file.pdf")
	assert.Error(t, err)
}
