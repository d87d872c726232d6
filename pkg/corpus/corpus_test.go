package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/pipeline"
	"github.com/Beastly713/mutafuzz/pkg/rng"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesCase(s string) *testcase.Testcase[*input.Bytes] {
	return testcase.New(input.NewBytes([]byte(s)))
}

func loadString(t *testing.T, c Corpus[*input.Bytes], idx int) string {
	t.Helper()
	tc, err := c.Get(idx)
	require.NoError(t, err)
	in, err := tc.LoadInput()
	require.NoError(t, err)
	return string(in.Bytes())
}

func TestMemoryCorpus(t *testing.T) {
	c := NewMemory[*input.Bytes]()
	assert.Equal(t, 0, c.Count())

	idx, err := c.Add(bytesCase("a"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	idx, err = c.Add(bytesCase("b"))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	assert.Equal(t, 2, c.Count())
	assert.Equal(t, "b", loadString(t, c, 1))

	_, err = c.Get(2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.Get(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.Add(nil)
	assert.Error(t, err)
}

func TestOnDiskCorpusEvictsAndReloads(t *testing.T) {
	dir := t.TempDir()
	c, err := NewOnDisk[*input.Bytes](dir, input.BytesCodec{}, OnDiskOptions{Compress: true, Instance: "w0"})
	require.NoError(t, err)

	tc := bytesCase("persisted")
	idx, err := c.Add(tc)
	require.NoError(t, err)

	assert.False(t, tc.Loaded(), "input should be evicted after the write")
	assert.Equal(t, "persisted", loadString(t, c, idx))
	assert.Equal(t, filepath.Join(dir, tc.ID()+".testcase"), tc.Metadata().Filename)

	_, err = c.Add(tc)
	assert.Error(t, err, "duplicate ids are rejected")
}

func TestOnDiskCorpusKeepInMemory(t *testing.T) {
	c, err := NewOnDisk[*input.Bytes](t.TempDir(), input.BytesCodec{}, OnDiskOptions{KeepInMemory: true})
	require.NoError(t, err)

	tc := bytesCase("hot")
	_, err = c.Add(tc)
	require.NoError(t, err)
	assert.True(t, tc.Loaded())
}

func TestOnDiskCorpusReopen(t *testing.T) {
	dir := t.TempDir()
	c, err := NewOnDisk[*input.Bytes](dir, input.BytesCodec{}, OnDiskOptions{})
	require.NoError(t, err)
	for _, s := range []string{"one", "two", "three"} {
		_, err := c.Add(bytesCase(s))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.testcase"), []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0644))

	reopened, err := NewOnDisk[*input.Bytes](dir, input.BytesCodec{}, OnDiskOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, reopened.Count())

	got := map[string]bool{}
	for i := 0; i < reopened.Count(); i++ {
		got[loadString(t, reopened, i)] = true
	}
	assert.Equal(t, map[string]bool{"one": true, "two": true, "three": true}, got)
}

func TestOnDiskMissingFileFailsLoad(t *testing.T) {
	c, err := NewOnDisk[*input.Bytes](t.TempDir(), input.BytesCodec{}, OnDiskOptions{})
	require.NoError(t, err)
	tc := bytesCase("doomed")
	_, err = c.Add(tc)
	require.NoError(t, err)

	require.NoError(t, os.Remove(tc.Metadata().Filename))
	_, err = tc.LoadInput()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOnDiskWritesInputs(t *testing.T) {
	dir := t.TempDir()
	c, err := NewOnDisk[*input.Bytes](dir, input.BytesCodec{}, OnDiskOptions{Compress: true, WriteInputs: true})
	require.NoError(t, err)
	tc := bytesCase("crash\x00me")
	_, err = c.Add(tc)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, tc.ID()+pipeline.InputExt))
	require.NoError(t, err)
	assert.Equal(t, "crash\x00me", string(raw))

	reopened, err := NewOnDisk[*input.Bytes](dir, input.BytesCodec{}, OnDiskOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count(), "bare inputs are not corpus entries")
}

func TestSQLiteCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	c, err := NewSQLite[*input.Bytes](path, input.BytesCodec{}, false)
	require.NoError(t, err)

	tc := bytesCase("row")
	tc.UpdateMetadata(func(m *testcase.Metadata) { m.Depth = 2; m.ParentID = "p" })
	_, err = c.Add(tc)
	require.NoError(t, err)
	_, err = c.Add(bytesCase("row2"))
	require.NoError(t, err)

	assert.False(t, tc.Loaded())
	assert.Equal(t, "row", loadString(t, c, 0))
	require.NoError(t, c.Close())

	reopened, err := NewSQLite[*input.Bytes](path, input.BytesCodec{}, false)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, 2, reopened.Count())
	first, err := reopened.Get(0)
	require.NoError(t, err)
	assert.Equal(t, tc.ID(), first.ID())
	assert.Equal(t, 2, first.Metadata().Depth)
	assert.Equal(t, "row2", loadString(t, reopened, 1))

	_, err = reopened.db.Exec(`DELETE FROM testcases WHERE id = ?`, first.ID())
	require.NoError(t, err)
	_, err = first.LoadInput()
	assert.Error(t, err)
}

func TestSchedulers(t *testing.T) {
	c := NewMemory[*input.Bytes]()
	r := rng.New(3)

	_, err := RandomScheduler[*input.Bytes]{}.Next(r, c)
	assert.ErrorIs(t, err, ErrEmpty)
	q := &QueueScheduler[*input.Bytes]{}
	_, err = q.Next(r, c)
	assert.ErrorIs(t, err, ErrEmpty)

	for _, s := range []string{"a", "b", "c"} {
		_, err := c.Add(bytesCase(s))
		require.NoError(t, err)
	}

	var order []int
	for i := 0; i < 5; i++ {
		idx, err := q.Next(r, c)
		require.NoError(t, err)
		order = append(order, idx)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1}, order)

	for i := 0; i < 100; i++ {
		idx, err := RandomScheduler[*input.Bytes]{}.Next(r, c)
		require.NoError(t, err)
		require.True(t, idx >= 0 && idx < 3)
	}
}
