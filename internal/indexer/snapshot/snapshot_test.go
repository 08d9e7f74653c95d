package snapshot

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/index"
)

func sampleState() index.State {
	return index.State{
		Documents: []document.Document{{
			ID:           "doc1",
			Name:         "doc1.pdf",
			Type:         document.FileTypePDF,
			LastModified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Text:         "growth growth",
		}},
		Terms: []index.TermEntry{{
			Term:     "growth",
			Postings: []index.EntryState{{DocID: "doc1", Spans: []index.Span{{Start: 0, End: 6}, {Start: 7, End: 13}}}},
		}},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.dsix")
	state := sampleState()
	require.NoError(t, Write(path, state))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, state, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not be left behind")
}

func TestReadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.dsix")
	require.NoError(t, Write(path, sampleState()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	h, err := ReadHeader(data)
	require.NoError(t, err)
	assert.Equal(t, MagicBytes, h.Magic)
	assert.Equal(t, FormatVersion, h.Version)
	assert.Equal(t, uint32(1), h.DocCount)
	assert.Equal(t, uint32(1), h.TermCount)
	assert.Equal(t, int64(HeaderSize), h.DocsOffset)
}

func TestReadRejectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.dsix")
	require.NoError(t, Write(path, sampleState()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   string
	}{
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }, "magic"},
		{"flipped body byte", func(b []byte) []byte { b[HeaderSize+2] ^= 0x01; return b }, "checksum"},
		{"truncated", func(b []byte) []byte { return b[:len(b)-4] }, "offsets"},
		{"too short", func(b []byte) []byte { return b[:10] }, "shorter"},
		{"negative docs size", func(b []byte) []byte {
			docs := binary.LittleEndian.Uint64(b[32:40])
			terms := binary.LittleEndian.Uint64(b[48:56])
			binary.LittleEndian.PutUint64(b[32:40], ^uint64(4)) // -5
			binary.LittleEndian.PutUint64(b[40:48], uint64(HeaderSize-5))
			binary.LittleEndian.PutUint64(b[48:56], docs+terms+5)
			return b
		}, "out of range"},
		{"oversized terms", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[48:56], 1<<62)
			return b
		}, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := tt.mutate(append([]byte(nil), data...))
			p := filepath.Join(dir, tt.name+".dsix")
			require.NoError(t, os.WriteFile(p, corrupt, 0o644))
			_, err := Read(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.dsix"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
