package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func httpErr(code int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      fmt.Errorf("status %d", code),
		},
		RequestID: "req-1",
	}
}

type fakeS3 struct {
	putErrs  []error
	putCalls int
	putKey   string
	putBody  []byte
	putType  string

	objects map[string][]byte

	headErr   error
	headCalls int

	pages     []*s3.ListObjectsV2Output
	listErr   error
	listCalls int

	deleteErr error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.putCalls++
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.putKey = aws.ToString(in.Key)
	f.putType = aws.ToString(in.ContentType)
	f.putBody, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.headCalls++
	if f.headErr != nil {
		return nil, f.headErr
	}
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(b))),
		ContentType:   aws.String("application/pdf"),
	}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if in.ContinuationToken == nil {
		return f.pages[0], nil
	}
	return f.pages[1], nil
}

type fakePresigner struct {
	lastTTL time.Duration
	err     error
}

func (p *fakePresigner) opts(optFns []func(*s3.PresignOptions)) {
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	p.lastTTL = o.Expires
}

func (p *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.opts(optFns)
	return &v4.PresignedHTTPRequest{URL: "https://s3/get/" + aws.ToString(in.Key), Method: http.MethodGet}, nil
}

func (p *fakePresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.opts(optFns)
	return &v4.PresignedHTTPRequest{URL: "https://s3/put/" + aws.ToString(in.Key), Method: http.MethodPut}, nil
}

func newTestStore(c *fakeS3, p *fakePresigner, retries int) *S3Store {
	return NewWithClients(c, p, Options{
		Bucket:         "notes-bucket",
		RetryAttempts:  retries,
		RetryBaseDelay: time.Millisecond,
	}, logging.Nop())
}

func TestPut_RetriesTransientFailures(t *testing.T) {
	c := &fakeS3{putErrs: []error{httpErr(503), httpErr(429)}}
	s := newTestStore(c, &fakePresigner{}, 3)

	err := s.Put(context.Background(), "notes/a.pdf", []byte("data"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, c.putCalls)
	assert.Equal(t, "notes/a.pdf", c.putKey)
	assert.Equal(t, []byte("data"), c.putBody)
	assert.Equal(t, "application/pdf", c.putType)
}

func TestPut_ExhaustedRetriesAreStorageUnavailable(t *testing.T) {
	c := &fakeS3{putErrs: []error{httpErr(500), httpErr(500), httpErr(500), httpErr(500)}}
	s := newTestStore(c, &fakePresigner{}, 2)

	err := s.Put(context.Background(), "notes/a.pdf", []byte("x"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.Equal(t, 3, c.putCalls)
}

func TestPut_PermanentErrorIsNotRetried(t *testing.T) {
	c := &fakeS3{putErrs: []error{httpErr(403)}}
	s := newTestStore(c, &fakePresigner{}, 3)

	err := s.Put(context.Background(), "notes/a.pdf", []byte("x"), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrStorageUnavailable)
	assert.Equal(t, 1, c.putCalls)
}

func TestPut_CanceledContext(t *testing.T) {
	c := &fakeS3{}
	s := newTestStore(c, &fakePresigner{}, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, "notes/a.pdf", []byte("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGet(t *testing.T) {
	c := &fakeS3{objects: map[string][]byte{"notes/a.pdf": []byte("pdf")}}
	s := newTestStore(c, &fakePresigner{}, 0)

	b, err := s.Get(context.Background(), "notes/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), b)

	_, err = s.Get(context.Background(), "notes/missing.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	c := &fakeS3{objects: map[string][]byte{"notes/a.pdf": nil}}
	s := newTestStore(c, &fakePresigner{}, 0)

	require.NoError(t, s.Delete(context.Background(), "notes/a.pdf"))
	assert.NotContains(t, c.objects, "notes/a.pdf")

	c.deleteErr = errors.New("access denied")
	assert.ErrorContains(t, s.Delete(context.Background(), "notes/b.pdf"), "access denied")
}

func TestStatAndExists(t *testing.T) {
	c := &fakeS3{objects: map[string][]byte{"notes/a.pdf": []byte("12345")}}
	s := newTestStore(c, &fakePresigner{}, 0)

	obj, err := s.Stat(context.Background(), "notes/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "application/pdf", obj.ContentType)

	_, err = s.Stat(context.Background(), "notes/none.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)

	ok, err := s.Exists(context.Background(), "notes/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), "notes/none.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExists_404ResponseIsAbsent(t *testing.T) {
	c := &fakeS3{headErr: httpErr(404)}
	s := newTestStore(c, &fakePresigner{}, 3)

	ok, err := s.Exists(context.Background(), "notes/a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, c.headCalls)
}

func TestList_Paginates(t *testing.T) {
	now := time.Now()
	c := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("notes/a.pdf"), Size: aws.Int64(10), LastModified: aws.Time(now)}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("t1"),
		},
		{
			Contents: []types.Object{{Key: aws.String("notes/b.png"), Size: aws.Int64(20)}},
		},
	}}
	s := newTestStore(c, &fakePresigner{}, 0)

	objs, err := s.List(context.Background(), "notes/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "notes/a.pdf", objs[0].Key)
	assert.Equal(t, now, objs[0].LastModified)
	assert.Equal(t, int64(20), objs[1].Size)
	assert.Equal(t, 2, c.listCalls)
}

func TestList_Unavailable(t *testing.T) {
	c := &fakeS3{listErr: httpErr(502)}
	s := newTestStore(c, &fakePresigner{}, 1)

	_, err := s.List(context.Background(), "notes/")
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.Equal(t, 2, c.listCalls)
}

func TestPresign(t *testing.T) {
	p := &fakePresigner{}
	s := newTestStore(&fakeS3{}, p, 0)

	u, err := s.PresignGet(context.Background(), "notes/a.pdf", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://s3/get/notes/a.pdf", u)
	assert.Equal(t, time.Hour, p.lastTTL)

	u, err = s.PresignPut(context.Background(), "notes/b.pdf", "application/pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://s3/put/notes/b.pdf", u)
	assert.Equal(t, 15*time.Minute, p.lastTTL)

	p.err = errors.New("no creds")
	_, err = s.PresignGet(context.Background(), "notes/a.pdf", time.Hour)
	assert.ErrorContains(t, err, "no creds")
}

func TestNew_AppliesOptions(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "minio", creds.AccessKeyID)
		return aws.Config{Region: lo.Region}, nil
	}

	var captured s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&captured)
		}
		return s3.New(s3.Options{Region: cfg.Region})
	}

	s, err := New(context.Background(), Options{
		Bucket: "b", Region: "eu-west-1", AccessKey: "minio", SecretKey: "secret",
		BaseEndpoint: "http://127.0.0.1:9000", UsePathStyle: true, RetryAttempts: 2,
	}, logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(captured.BaseEndpoint))
	assert.True(t, captured.UsePathStyle)
	assert.Equal(t, 1, captured.RetryMaxAttempts)
	assert.Equal(t, uint64(2), s.retries)
}

func TestNew_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad profile")
	}

	_, err := New(context.Background(), Options{}, nil)
	assert.ErrorContains(t, err, "bad profile")
}
