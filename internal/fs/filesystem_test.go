package fs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfs/keyfs/internal/storage/s3/s3test"
	"github.com/keyfs/keyfs/pkg/errors"
)

func TestCanHandle(t *testing.T) {
	f := newTestFS(s3test.New())

	tests := []struct {
		path string
		want bool
	}{
		{"s3://walrus/data", true},
		{"s3n://walrus/data", true},
		{"s3a://walrus/data", true},
		{"hdfs://walrus/data", false},
		{"/local/path", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.CanHandle(tt.path), tt.path)
	}
}

func TestStat(t *testing.T) {
	fake := s3test.New()
	fake.AddObject("walrus", "data/foo", []byte("hello"))
	f := newTestFS(fake)

	obj, err := f.Stat(context.Background(), "s3://walrus/data/foo")
	require.NoError(t, err)
	assert.Equal(t, "walrus", obj.Bucket)
	assert.Equal(t, "data/foo", obj.Key)
	assert.Equal(t, int64(5), obj.Size)
	assert.NotContains(t, obj.ETag, `"`)
}

func TestStatMissingObject(t *testing.T) {
	fake := s3test.New()
	fake.AddBucket("walrus", "us-east-1")
	f := newTestFS(fake)

	_, err := f.Stat(context.Background(), "s3://walrus/absent")
	assert.True(t, errors.IsNotFound(err))
}

func TestDu(t *testing.T) {
	fake := s3test.New()
	fake.AddObject("walrus", "data/a", make([]byte, 100))
	fake.AddObject("walrus", "data/b", make([]byte, 250))
	fake.AddObject("walrus", "other/c", make([]byte, 999))
	f := newTestFS(fake)

	total, err := f.Du(context.Background(), "s3://walrus/data/*")
	require.NoError(t, err)
	assert.Equal(t, int64(350), total)
}

func TestDuEmptyGlob(t *testing.T) {
	fake := s3test.New()
	fake.AddBucket("walrus", "us-east-1")
	f := newTestFS(fake)

	total, err := f.Du(context.Background(), "s3://walrus/absent/*")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDuVanishedObjectIsHardError(t *testing.T) {
	// An object deleted between the listing and the size lookup must fail
	// the whole sum, not silently undercount.
	fake := s3test.New()
	fake.AddObject("walrus", "data/a", make([]byte, 100))
	fake.Errs["HeadObject"] = &s3types.NotFound{Message: aws.String("gone")}
	f := newTestFS(fake)

	_, err := f.Du(context.Background(), "s3://walrus/data/*")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestExists(t *testing.T) {
	fake := s3test.New()
	fake.AddObject("walrus", "data/foo", []byte("x"))
	f := newTestFS(fake)

	ok, err := f.Exists(context.Background(), "s3://walrus/data/foo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Exists(context.Background(), "s3://walrus/data/bar")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsMissingBucketIsFalse(t *testing.T) {
	f := newTestFS(s3test.New())

	ok, err := f.Exists(context.Background(), "s3://nope/key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRm(t *testing.T) {
	fake := s3test.New()
	fake.AddObject("walrus", "tmp/a", []byte("x"))
	fake.AddObject("walrus", "tmp/b", []byte("y"))
	fake.AddObject("walrus", "keep/c", []byte("z"))
	f := newTestFS(fake)

	require.NoError(t, f.Rm(context.Background(), "s3://walrus/tmp/*"))
	assert.Equal(t, []string{"keep/c"}, fake.Keys("walrus"))
}

func TestRmNoMatchesIsNil(t *testing.T) {
	fake := s3test.New()
	fake.AddBucket("walrus", "us-east-1")
	f := newTestFS(fake)

	assert.NoError(t, f.Rm(context.Background(), "s3://walrus/absent/*"))
}

func TestRmReportsAllFailures(t *testing.T) {
	fake := s3test.New()
	fake.AddObject("walrus", "tmp/a", []byte("x"))
	fake.AddObject("walrus", "tmp/b", []byte("y"))
	fake.Errs["DeleteObject"] = io.ErrUnexpectedEOF
	f := newTestFS(fake)

	err := f.Rm(context.Background(), "s3://walrus/tmp/*")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://walrus/tmp/a")
	assert.Contains(t, err.Error(), "s3://walrus/tmp/b")
}

func TestTouchz(t *testing.T) {
	fake := s3test.New()
	fake.AddBucket("walrus", "us-east-1")
	f := newTestFS(fake)

	require.NoError(t, f.Touchz(context.Background(), "s3://walrus/markers/_SUCCESS"))

	obj, err := f.Stat(context.Background(), "s3://walrus/markers/_SUCCESS")
	require.NoError(t, err)
	assert.Zero(t, obj.Size)

	// touching an existing empty object is idempotent
	assert.NoError(t, f.Touchz(context.Background(), "s3://walrus/markers/_SUCCESS"))
}

func TestTouchzRefusesNonEmpty(t *testing.T) {
	fake := s3test.New()
	fake.AddObject("walrus", "data/foo", []byte("precious"))
	f := newTestFS(fake)

	err := f.Touchz(context.Background(), "s3://walrus/data/foo")
	assert.True(t, errors.IsCode(err, errors.CodeConflict))

	body, err := f.Cat(context.Background(), "s3://walrus/data/foo")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "precious", string(data))
}

func TestMkdirIsNoOp(t *testing.T) {
	fake := s3test.New()
	f := newTestFS(fake)

	assert.NoError(t, f.Mkdir(context.Background(), "s3://walrus/some/dir"))
	assert.Empty(t, fake.Calls)
}

func TestMD5Sum(t *testing.T) {
	data := []byte("hello world")
	fake := s3test.New()
	fake.AddObject("walrus", "data/foo", data)
	f := newTestFS(fake)

	sum, err := f.MD5Sum(context.Background(), "s3://walrus/data/foo")
	require.NoError(t, err)

	want := md5.Sum(data)
	assert.Equal(t, hex.EncodeToString(want[:]), sum)
}

func TestMD5SumMissingObject(t *testing.T) {
	fake := s3test.New()
	fake.AddBucket("walrus", "us-east-1")
	f := newTestFS(fake)

	_, err := f.MD5Sum(context.Background(), "s3://walrus/absent")
	assert.True(t, errors.IsNotFound(err))
}

func TestCat(t *testing.T) {
	fake := s3test.New()
	fake.AddObject("walrus", "data/foo", []byte("line1\nline2\n"))
	f := newTestFS(fake)

	body, err := f.Cat(context.Background(), "s3://walrus/data/foo")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(data))
}

func TestCatMissingObject(t *testing.T) {
	fake := s3test.New()
	fake.AddBucket("walrus", "us-east-1")
	f := newTestFS(fake)

	_, err := f.Cat(context.Background(), "s3://walrus/absent")
	assert.True(t, errors.IsNotFound(err))
}

func TestCatLines(t *testing.T) {
	fake := s3test.New()
	fake.AddObject("walrus", "data/foo", []byte("one\ntwo\nthree"))
	f := newTestFS(fake)

	seq, err := f.CatLines(context.Background(), "s3://walrus/data/foo")
	require.NoError(t, err)

	var lines []string
	for line, lerr := range seq {
		require.NoError(t, lerr)
		lines = append(lines, strings.TrimRight(string(line), "\n"))
	}
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestListBucketNames(t *testing.T) {
	fake := s3test.New()
	fake.AddBucket("beta", "eu-west-1")
	fake.AddBucket("alpha", "us-east-1")
	f := newTestFS(fake)

	names, err := f.ListBucketNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)
}

func TestCreateBucket(t *testing.T) {
	fake := s3test.New()
	f := newTestFS(fake)

	require.NoError(t, f.CreateBucket(context.Background(), "fresh", "eu-central-1"))
	assert.Equal(t, "eu-central-1", fake.Regions["fresh"])
}

func TestCreateBucketDefaultRegionOmitsConstraint(t *testing.T) {
	fake := s3test.New()
	f := newTestFS(fake)

	require.NoError(t, f.CreateBucket(context.Background(), "fresh", "us-east-1"))
	assert.Equal(t, "us-east-1", fake.Regions["fresh"])

	require.NoError(t, f.CreateBucket(context.Background(), "fresher", ""))
	assert.Equal(t, "us-east-1", fake.Regions["fresher"])
}
