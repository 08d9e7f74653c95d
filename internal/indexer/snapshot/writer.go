// Package snapshot persists a complete index store (documents and postings)
// to a single file and reads it back losslessly.
//
// Layout: a fixed 64-byte little-endian header, a JSON documents section, a
// JSON terms section and a 16-byte footer holding a CRC32 of both sections.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/index"
)

// MagicBytes identifies a valid .dsix snapshot file.
const (
	MagicBytes    uint32 = 0x44534958
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
)

// Header is the fixed header written at the start of every snapshot.
type Header struct {
	Magic       uint32
	Version     uint32
	DocCount    uint32
	TermCount   uint32
	CreatedAt   int64
	DocsOffset  int64
	DocsSize    int64
	TermsOffset int64
	TermsSize   int64
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.DocCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.TermCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.DocsSize))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.TermsOffset))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.TermsSize))
	return buf
}

// Write atomically creates path holding state. It writes to a .tmp file
// first and renames on success.
func Write(path string, state index.State) error {
	docsData, err := json.Marshal(state.Documents)
	if err != nil {
		return fmt.Errorf("marshaling documents: %w", err)
	}
	termsData, err := json.Marshal(state.Terms)
	if err != nil {
		return fmt.Errorf("marshaling terms: %w", err)
	}
	header := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		DocCount:    uint32(len(state.Documents)),
		TermCount:   uint32(len(state.Terms)),
		CreatedAt:   time.Now().Unix(),
		DocsOffset:  int64(HeaderSize),
		DocsSize:    int64(len(docsData)),
		TermsOffset: int64(HeaderSize + len(docsData)),
		TermsSize:   int64(len(termsData)),
	}
	checksum := crc32.NewIEEE()
	checksum.Write(docsData)
	checksum.Write(termsData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], MagicBytes)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	for _, section := range [][]byte{header.encode(), docsData, termsData, footer} {
		if _, err := f.Write(section); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}
