package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/storage/minio"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Upload(ctx context.Context, req *minio.UploadRequest) (*minio.UploadResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(*minio.UploadResult), args.Error(1)
}

func (m *mockStore) UploadFile(ctx context.Context, key, path string, metadata map[string]string) (*minio.UploadResult, error) {
	args := m.Called(ctx, key, path, metadata)
	res, _ := args.Get(0).(*minio.UploadResult)
	return res, args.Error(1)
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, prefix string) ([]*minio.ObjectMetadata, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]*minio.ObjectMetadata), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	summary := filepath.Join(dir, "summary.csv")
	require.NoError(t, os.WriteFile(summary, []byte("a\n"), 0o644))
	batches := filepath.Join(dir, "batches")
	require.NoError(t, os.MkdirAll(filepath.Join(batches, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(batches, "b1.zip"), []byte("zz"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(batches, "sub", "b2.zip"), []byte("zzz"), 0o644))

	store := new(mockStore)
	meta := map[string]string{MetadataRunID: "run-1"}
	store.On("UploadFile", mock.Anything, "runs/run-1/summary.csv", summary, meta).Return(&minio.UploadResult{Size: 2}, nil)
	store.On("UploadFile", mock.Anything, "runs/run-1/batches/b1.zip", filepath.Join(batches, "b1.zip"), meta).Return(&minio.UploadResult{Size: 2}, nil)
	store.On("UploadFile", mock.Anything, "runs/run-1/batches/sub/b2.zip", filepath.Join(batches, "sub", "b2.zip"), meta).Return(&minio.UploadResult{Size: 3}, nil)

	p := NewPublisher(store, "runs", 2, logging.NewNopLogger())
	out, err := p.Publish(context.Background(), "run-1", []string{summary, batches})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "runs/run-1/batches/b1.zip", out[0].Key)
	assert.Equal(t, "runs/run-1/summary.csv", out[2].Key)
	store.AssertExpectations(t)
}

func TestPublish_GeneratesRunID(t *testing.T) {
	f := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(f, []byte("a"), 0o644))

	store := new(mockStore)
	store.On("UploadFile", mock.Anything, mock.MatchedBy(func(k string) bool {
		return len(k) == len("p/")+36+len("/x.csv")
	}), f, mock.Anything).Return(&minio.UploadResult{Size: 1}, nil)

	out, err := NewPublisher(store, "p", 1, logging.NewNopLogger()).Publish(context.Background(), "", []string{f})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestPublish_Errors(t *testing.T) {
	p := NewPublisher(new(mockStore), "p", 1, logging.NewNopLogger())
	_, err := p.Publish(context.Background(), "r", []string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(f, []byte("a"), 0o644))
	store := new(mockStore)
	store.On("UploadFile", mock.Anything, "p/r/x.csv", f, mock.Anything).Return(nil, fmt.Errorf("denied"))
	_, err = NewPublisher(store, "p", 1, logging.NewNopLogger()).Publish(context.Background(), "r", []string{f})
	assert.EqualError(t, err, "denied")
}
