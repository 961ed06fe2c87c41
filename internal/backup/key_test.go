package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpName(t *testing.T) {
	ts := time.Date(2026, 8, 28, 9, 30, 5, 0, time.UTC)
	assert.Equal(t, "backup-20260828-093005.sql.gz", DumpName(ts, true))
	assert.Equal(t, "backup-20260828-093005.sql", DumpName(ts, false))
}

func TestObjectKey(t *testing.T) {
	cases := []struct {
		prefix, name, want string
	}{
		{"", "backup.sql.gz", "backup.sql.gz"},
		{"nightly", "backup.sql.gz", "nightly/backup.sql.gz"},
		{"nightly/", "backup.sql.gz", "nightly/backup.sql.gz"},
		{"nightly//", "/backup.sql.gz", "nightly/backup.sql.gz"},
		{"a/b", "backup.sql.gz", "a/b/backup.sql.gz"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ObjectKey(tc.prefix, tc.name))
	}
}

type memUploader struct {
	key         string
	contentType string
	data        []byte
}

func (m *memUploader) Upload(_ context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.key = key
	m.contentType = contentType
	m.data = data
	return nil
}

func TestRunStreamsCompressedDump(t *testing.T) {
	uploader := &memUploader{}
	svc := NewService(Config{
		DatabaseURL: "postgres://localhost/ignored",
		Bucket:      "backups",
		Prefix:      "nightly",
		Compress:    true,
		// Stand-in for pg_dump with deterministic output.
		PGDumpPath: "echo",
	}, uploader, nil)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "backups", result.Bucket)
	assert.Contains(t, result.Key, "nightly/backup-")
	assert.Equal(t, "application/gzip", uploader.contentType)
	assert.Positive(t, result.Size)

	gz, err := gzip.NewReader(bytes.NewReader(uploader.data))
	require.NoError(t, err)
	plain, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "--dbname")
}

func TestRunRequiresConfig(t *testing.T) {
	svc := NewService(Config{Bucket: "backups"}, &memUploader{}, nil)
	_, err := svc.Run(context.Background())
	require.Error(t, err)

	svc = NewService(Config{DatabaseURL: "postgres://x"}, &memUploader{}, nil)
	_, err = svc.Run(context.Background())
	require.Error(t, err)
}
