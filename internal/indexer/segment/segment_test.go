package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/det-search/pkg/errors"
)

func writeSample(t *testing.T) string {
	t.Helper()
	m := index.NewMemoryIndex(3)
	_, err := m.AddUnit(1, 0, map[string]string{index.FieldText: "revenue grew NUMERICVALUE"})
	require.NoError(t, err)
	_, err = m.AddUnit(2, 3, map[string]string{index.FieldTable: "GHG NUMERICVALUE\nGHG scope 1"})
	require.NoError(t, err)

	path, err := NewWriter(t.TempDir()).Write(m.Snapshot(), m.Units())
	require.NoError(t, err)
	return path
}

func TestWriteAndRead(t *testing.T) {
	path := writeSample(t)
	assert.Equal(t, FileName, filepath.Base(path))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.UnitCount())
	assert.Equal(t, "1-0", r.Units()[0].ID)
	assert.Equal(t, "2-3", r.Units()[1].ID)

	postings, err := r.Search(index.FieldTable, "ghg")
	require.NoError(t, err)
	assert.Equal(t, index.PostingList{{UnitID: "2-3", Frequency: 2}}, postings)

	postings, err = r.Search(index.FieldText, "grew numericvalue")
	require.NoError(t, err)
	assert.Equal(t, index.PostingList{{UnitID: "1-0", Frequency: 1}}, postings)

	postings, err = r.Search(index.FieldText, "ghg")
	require.NoError(t, err)
	assert.Nil(t, postings)
}

func TestWriteEmptyIndex(t *testing.T) {
	path, err := NewWriter(t.TempDir()).Write(nil, nil)
	require.NoError(t, err)

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Zero(t, r.UnitCount())
	postings, err := r.Search(index.FieldText, "anything")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestOpenReaderMissing(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), FileName))
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestOpenReaderChecksumMismatch(t *testing.T) {
	path := writeSample(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// flip a byte inside the unit table, just before the footer
	data[len(data)-FooterSize-2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = OpenReader(path)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}

func TestOpenReaderTruncated(t *testing.T) {
	path := writeSample(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0644))

	_, err = OpenReader(path)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}

func TestOpenReaderBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize+FooterSize), 0644))

	_, err := OpenReader(path)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}
