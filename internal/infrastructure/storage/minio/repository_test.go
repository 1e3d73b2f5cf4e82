package minio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/pkg/errors"
)

type RepositoryTestSuite struct {
	suite.Suite
	api  *MockMinIOAPI
	repo ObjectStore
}

func (s *RepositoryTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	client := NewClientWithAPI(s.api, &MinIOConfig{Bucket: "runs"}, logging.NewNopLogger())
	s.repo = NewMinIORepository(client, logging.NewNopLogger())
}

func (s *RepositoryTestSuite) TestUploadFile() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "metrics.csv")
	require.NoError(s.T(), os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	s.api.On("PutObject", mock.Anything, "runs", "run-1/metrics.csv", mock.Anything, int64(8),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool { return o.ContentType == "text/csv" && o.UserMetadata["run"] == "run-1" })).
		Return(minio.UploadInfo{Bucket: "runs", Key: "run-1/metrics.csv", ETag: "e1", Size: 8}, nil)

	res, err := s.repo.UploadFile(context.Background(), "run-1/metrics.csv", path, map[string]string{"run": "run-1"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "runs", res.Bucket)
	assert.Equal(s.T(), "e1", res.ETag)
	assert.Equal(s.T(), int64(8), res.Size)
	s.api.AssertExpectations(s.T())
}

func (s *RepositoryTestSuite) TestUploadFile_Missing() {
	_, err := s.repo.UploadFile(context.Background(), "k", filepath.Join(s.T().TempDir(), "nope.csv"), nil)
	assert.True(s.T(), errors.IsCode(err, errors.ErrCodeIO))
}

func (s *RepositoryTestSuite) TestUpload_Invalid() {
	_, err := s.repo.Upload(context.Background(), &UploadRequest{})
	assert.ErrorIs(s.T(), err, ErrInvalidRequest)
}

func (s *RepositoryTestSuite) TestUpload_Failure() {
	s.api.On("PutObject", mock.Anything, "runs", "k", mock.Anything, int64(1), mock.Anything).
		Return(minio.UploadInfo{}, fmt.Errorf("boom"))
	_, err := s.repo.UploadFile(context.Background(), "k", s.writeFile("x.zip", "z"), nil)
	assert.True(s.T(), errors.IsCode(err, errors.ErrCodeStorage))
}

func (s *RepositoryTestSuite) TestExists() {
	s.api.On("StatObject", mock.Anything, "runs", "present", mock.Anything).Return(minio.ObjectInfo{Key: "present"}, nil)
	s.api.On("StatObject", mock.Anything, "runs", "absent", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	ok, err := s.repo.Exists(context.Background(), "present")
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	ok, err = s.repo.Exists(context.Background(), "absent")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func (s *RepositoryTestSuite) TestList() {
	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "p/a.csv", Size: 3}
	ch <- minio.ObjectInfo{Key: "p/b.csv", Size: 4}
	close(ch)
	s.api.On("ListObjects", mock.Anything, "runs", minio.ListObjectsOptions{Prefix: "p/", Recursive: true}).
		Return((<-chan minio.ObjectInfo)(ch))

	objs, err := s.repo.List(context.Background(), "p/")
	require.NoError(s.T(), err)
	require.Len(s.T(), objs, 2)
	assert.Equal(s.T(), "p/b.csv", objs[1].ObjectKey)
}

func (s *RepositoryTestSuite) TestDelete() {
	s.api.On("RemoveObject", mock.Anything, "runs", "k", mock.Anything).Return(nil)
	assert.NoError(s.T(), s.repo.Delete(context.Background(), "k"))
}

func (s *RepositoryTestSuite) writeFile(name, content string) string {
	path := filepath.Join(s.T().TempDir(), name)
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/csv", ContentTypeFor("a/b.CSV"))
	assert.Equal(t, "text/tab-separated-values", ContentTypeFor("x.tsv"))
	assert.Equal(t, "application/zip", ContentTypeFor("batch.zip"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("noext"))
}
