package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lan-gateway/gateway/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func sampleEntries() []model.AuthorizedIP {
	return []model.AuthorizedIP{
		{ID: "1", IPAddress: "192.168.1.50", Active: boolPtr(true)},
		{ID: "2", IPAddress: " 192.168.1.51 ", Description: "caja", Active: boolPtr(false)},
		{ID: "3", IPAddress: "fe80::1"},
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s := New(t.TempDir(), nil)

	entries := s.Load()
	require.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir(), nil)
	in := sampleEntries()

	require.NoError(t, s.Save(in))
	out := s.Load()

	assert.Equal(t, in, out)
}

func TestSaveNilStoresEmptyList(t *testing.T) {
	s := New(t.TempDir(), nil)

	require.NoError(t, s.Save(nil))
	_, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Empty(t, s.Load())
}

func TestFileLayoutAndFreshIV(t *testing.T) {
	s := New(t.TempDir(), nil)

	require.NoError(t, s.Save(sampleEntries()))
	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleEntries()))
	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	assert.Greater(t, len(first), ivSize+tagSize)
	assert.NotEqual(t, first[:ivSize], second[:ivSize])
	assert.NotContains(t, string(first), "192.168.1.50")
}

func TestLoadFromOtherInstallationFailsClosed(t *testing.T) {
	src := New(t.TempDir(), nil)
	require.NoError(t, src.Save(sampleEntries()))

	other := New(t.TempDir(), nil)
	data, err := os.ReadFile(src.Path())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(other.Path(), data, 0o600))

	assert.Empty(t, other.Load())
}

func TestTamperedFileFailsClosed(t *testing.T) {
	s := New(t.TempDir(), nil)
	require.NoError(t, s.Save(sampleEntries()))
	orig, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	// One bit in the IV, the tag and the ciphertext.
	for _, pos := range []int{0, ivSize, ivSize + tagSize - 1, ivSize + tagSize, len(orig) - 1} {
		data := append([]byte(nil), orig...)
		data[pos] ^= 0x01
		require.NoError(t, os.WriteFile(s.Path(), data, 0o600))

		assert.Empty(t, s.Load(), "flipped byte %d", pos)
	}
}

func TestTruncatedFileFailsClosed(t *testing.T) {
	s := New(t.TempDir(), nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte("short"), 0o600))

	assert.Empty(t, s.Load())
}

func TestActiveIPs(t *testing.T) {
	s := New(t.TempDir(), nil)
	require.NoError(t, s.Save(sampleEntries()))

	assert.Equal(t, []string{"192.168.1.50", "fe80::1"}, s.ActiveIPs())
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	require.NoError(t, s.Save(sampleEntries()))

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEditHelpers(t *testing.T) {
	s := New(t.TempDir(), nil)

	added, err := s.Add(" 10.0.0.9 ", "barra")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", added.IPAddress)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, []string{"10.0.0.9"}, s.ActiveIPs())

	n, err := s.SetActive(added.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, s.ActiveIPs())

	n, err = s.SetActive("10.0.0.9", true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"10.0.0.9"}, s.ActiveIPs())

	n, err = s.Remove("10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, s.Load())

	n, err = s.Remove("missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Add("  ", "")
	assert.Error(t, err)
}
