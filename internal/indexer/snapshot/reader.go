package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/index"
)

// ReadHeader decodes and validates the header at the start of data.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize+FooterSize {
		return Header{}, fmt.Errorf("invalid snapshot: %d bytes is shorter than header and footer", len(data))
	}
	h := Header{
		Magic:       binary.LittleEndian.Uint32(data[0:4]),
		Version:     binary.LittleEndian.Uint32(data[4:8]),
		DocCount:    binary.LittleEndian.Uint32(data[8:12]),
		TermCount:   binary.LittleEndian.Uint32(data[12:16]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(data[16:24])),
		DocsOffset:  int64(binary.LittleEndian.Uint64(data[24:32])),
		DocsSize:    int64(binary.LittleEndian.Uint64(data[32:40])),
		TermsOffset: int64(binary.LittleEndian.Uint64(data[40:48])),
		TermsSize:   int64(binary.LittleEndian.Uint64(data[48:56])),
	}
	if h.Magic != MagicBytes {
		return Header{}, fmt.Errorf("invalid snapshot: bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	size := int64(len(data))
	if h.DocsSize < 0 || h.DocsSize > size || h.TermsSize < 0 || h.TermsSize > size {
		return Header{}, fmt.Errorf("invalid snapshot: section sizes %d/%d out of range for file size %d", h.DocsSize, h.TermsSize, len(data))
	}
	end := h.TermsOffset + h.TermsSize
	if h.DocsOffset != int64(HeaderSize) || h.TermsOffset != h.DocsOffset+h.DocsSize || end+int64(FooterSize) != int64(len(data)) {
		return Header{}, fmt.Errorf("invalid snapshot: section offsets do not match file size %d", len(data))
	}
	return h, nil
}

// Read loads the state stored at path, verifying its checksum.
func Read(path string) (index.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return index.State{}, fmt.Errorf("reading snapshot file: %w", err)
	}
	h, err := ReadHeader(data)
	if err != nil {
		return index.State{}, err
	}
	docsData := data[h.DocsOffset : h.DocsOffset+h.DocsSize]
	termsData := data[h.TermsOffset : h.TermsOffset+h.TermsSize]
	footer := data[h.TermsOffset+h.TermsSize:]

	checksum := crc32.NewIEEE()
	checksum.Write(docsData)
	checksum.Write(termsData)
	if want := binary.LittleEndian.Uint32(footer[0:4]); want != checksum.Sum32() {
		return index.State{}, fmt.Errorf("invalid snapshot: checksum mismatch (stored %x, computed %x)", want, checksum.Sum32())
	}

	var state index.State
	if err := json.Unmarshal(docsData, &state.Documents); err != nil {
		return index.State{}, fmt.Errorf("parsing documents: %w", err)
	}
	if err := json.Unmarshal(termsData, &state.Terms); err != nil {
		return index.State{}, fmt.Errorf("parsing terms: %w", err)
	}
	if uint32(len(state.Documents)) != h.DocCount || uint32(len(state.Terms)) != h.TermCount {
		return index.State{}, fmt.Errorf("invalid snapshot: header counts %d/%d do not match content %d/%d",
			h.DocCount, h.TermCount, len(state.Documents), len(state.Terms))
	}
	return state, nil
}
