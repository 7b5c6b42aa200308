package datalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(b), "\r\n"), "\r\n")
}

func TestFileSinkRotates(t *testing.T) {
	dir := t.TempDir()
	h := &Header{BootID: "boot", Sensors: []Column{{Name: "temp"}}}
	// header plus three lines per file
	s := NewFileSink(dir, "LOG_XX.TSV", 4, true)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, h))
	assert.Equal(t, filepath.Join(dir, "LOG_00.TSV"), s.Path())
	for m := uint64(1); m <= 4; m++ {
		require.NoError(t, s.WriteLine(ctx, snap(m), line(m)))
	}
	require.NoError(t, s.Close())

	first := readLines(t, filepath.Join(dir, "LOG_00.TSV"))
	require.Len(t, first, 3+3)
	assert.Equal(t, "# boot boot", first[2])
	assert.Equal(t, strings.TrimSuffix(line(3), "\r\n"), first[5])

	second := readLines(t, filepath.Join(dir, "LOG_01.TSV"))
	require.Len(t, second, 3+1)
	assert.True(t, strings.HasPrefix(second[0], "# time"))

	// a later sync keeps appending to the current file without a new header
	require.NoError(t, s.Open(ctx, h))
	require.NoError(t, s.WriteLine(ctx, snap(5), line(5)))
	require.NoError(t, s.Close())
	assert.Len(t, readLines(t, filepath.Join(dir, "LOG_01.TSV")), 3+2)
}

func TestFileSinkSkipsUsedNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LOG_00.TSV"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LOG_01.TSV"), []byte("old"), 0o644))

	s := NewFileSink(dir, "LOG_XX.TSV", 100, true)
	require.NoError(t, s.Open(context.Background(), &Header{}))
	assert.Equal(t, filepath.Join(dir, "LOG_02.TSV"), s.Path())
	require.NoError(t, s.Close())
}

func TestFileSinkFallsBackWhenFull(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir, "LOG_XX.TSV", 100, true)
	for i := 0; i <= maxFileIndex; i++ {
		name := strings.Replace("LOG_XX.TSV", IndexPlaceholder, string([]byte{'0' + byte(i/10), '0' + byte(i%10)}), 1)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	assert.Equal(t, "LOG_XX.TSV", s.newName())
}

func TestFileSinkWithoutRotation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := NewFileSink(dir, "status.log", 0, true)
	require.NoError(t, s.Open(ctx, &Header{}))
	assert.Equal(t, filepath.Join(dir, "status_00.log"), s.Path())
	require.NoError(t, s.WriteLine(ctx, snap(1), line(1)))
	require.NoError(t, s.Close())

	// a restarted sink reuses the file and does not repeat the header
	s = NewFileSink(dir, "status.log", 0, true)
	require.NoError(t, s.Open(ctx, &Header{}))
	require.NoError(t, s.WriteLine(ctx, snap(2), line(2)))
	require.NoError(t, s.Close())
	assert.Len(t, readLines(t, filepath.Join(dir, "status_00.log")), 3+2)
}

func TestFileSinkUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := NewFileSink(filepath.Join(blocker, "logs"), "LOG_XX.TSV", 10, true)
	assert.Error(t, s.Open(context.Background(), &Header{}))
	assert.Error(t, s.WriteLine(context.Background(), snap(1), line(1)))
}

func TestFileSinkClosesFileWhenHeaderFails(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full")
	}
	// writes to /dev/full always fail with ENOSPC
	s := NewFileSink("/dev", "full", 0, true)
	err := s.Open(context.Background(), &Header{BootID: "boot"})
	require.Error(t, err)
	assert.Nil(t, s.f)
	assert.False(t, s.haveHeader)
}
