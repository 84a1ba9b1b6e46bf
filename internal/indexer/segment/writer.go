// Package segment persists a built index as a single binary segment file:
// a fixed header, the postings block, a sorted JSON dictionary, the unit
// table, and a checksum footer.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/index"
)

// MagicBytes identifies a valid segment file.
const (
	MagicBytes    uint32 = 0x44455453
	FormatVersion uint32 = 1
	HeaderSize    int    = 96
	FooterSize    int    = 8
	FileName             = "index.seg"
)

// SegmentHeader is written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	UnitCount  uint32
	CreatedAt  int64
	PostOffset int64
	PostSize   int64
	DictOffset int64
	DictSize   int64
	UnitOffset int64
	UnitSize   int64
}

// DictEntry maps a field-scoped gram to its postings offset, length, and
// unit frequency in the segment file.
type DictEntry struct {
	Key        string `json:"k"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Writer serialises a snapshot into a segment file inside one directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write creates the segment file. It writes to a .tmp file first and renames
// on success, returning the final path.
func (w *Writer) Write(entries []index.TermEntry, units []index.Unit) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	finalPath := filepath.Join(w.dir, FileName)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		UnitCount: uint32(len(units)),
		CreatedAt: time.Now().Unix(),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header placeholder: %w", err)
	}

	header.PostOffset = int64(HeaderSize)
	dict := make([]DictEntry, 0, len(entries))
	var written int64
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for %q: %w", entry.Key, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for %q: %w", entry.Key, err)
		}
		dict = append(dict, DictEntry{
			Key:        entry.Key,
			PostOffset: written,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		written += int64(len(postingsData))
	}
	header.PostSize = written

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	unitData, err := json.Marshal(units)
	if err != nil {
		return "", fmt.Errorf("marshaling units: %w", err)
	}
	header.DictOffset = header.PostOffset + header.PostSize
	header.DictSize = int64(len(dictData))
	header.UnitOffset = header.DictOffset + header.DictSize
	header.UnitSize = int64(len(unitData))
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	if _, err := f.Write(unitData); err != nil {
		return "", fmt.Errorf("writing units: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum(dictData, unitData))
	binary.LittleEndian.PutUint32(footer[4:8], MagicBytes)
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return finalPath, nil
}

func checksum(dict, units []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(dict)
	h.Write(units)
	return h.Sum32()
}

func encodeHeader(h SegmentHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.UnitCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.UnitOffset))
	binary.LittleEndian.PutUint64(buf[64:72], uint64(h.UnitSize))
	return buf
}

func decodeHeader(r io.ReaderAt) (SegmentHeader, error) {
	buf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return SegmentHeader{}, err
	}
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:  binary.LittleEndian.Uint32(buf[8:12]),
		UnitCount:  binary.LittleEndian.Uint32(buf[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[16:24])),
		PostOffset: int64(binary.LittleEndian.Uint64(buf[24:32])),
		PostSize:   int64(binary.LittleEndian.Uint64(buf[32:40])),
		DictOffset: int64(binary.LittleEndian.Uint64(buf[40:48])),
		DictSize:   int64(binary.LittleEndian.Uint64(buf[48:56])),
		UnitOffset: int64(binary.LittleEndian.Uint64(buf[56:64])),
		UnitSize:   int64(binary.LittleEndian.Uint64(buf[64:72])),
	}, nil
}
