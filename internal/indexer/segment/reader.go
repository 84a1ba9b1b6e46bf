package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/det-search/pkg/errors"
)

type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	units    []index.Unit
}

// OpenReader opens a segment file and loads its dictionary and unit table.
// A missing file wraps ErrIndexNotFound; a file that fails validation wraps
// ErrCorruptIndex.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	header, err := decodeHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading header of %s: %v", apperrors.ErrCorruptIndex, path, err)
	}
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrCorruptIndex, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", apperrors.ErrCorruptIndex, header.Version)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	if header.DictSize < 0 || header.UnitSize < 0 || header.DictOffset < int64(HeaderSize) ||
		header.UnitOffset+header.UnitSize+int64(FooterSize) != info.Size() {
		return nil, fmt.Errorf("%w: section sizes do not match file size %d", apperrors.ErrCorruptIndex, info.Size())
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("%w: reading dictionary: %v", apperrors.ErrCorruptIndex, err)
	}
	unitBytes := make([]byte, header.UnitSize)
	if _, err := f.ReadAt(unitBytes, header.UnitOffset); err != nil {
		return nil, fmt.Errorf("%w: reading units: %v", apperrors.ErrCorruptIndex, err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.UnitOffset+header.UnitSize); err != nil {
		return nil, fmt.Errorf("%w: reading footer: %v", apperrors.ErrCorruptIndex, err)
	}
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != checksum(dictBytes, unitBytes) {
		return nil, fmt.Errorf("%w: checksum mismatch", apperrors.ErrCorruptIndex)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("%w: parsing dictionary: %v", apperrors.ErrCorruptIndex, err)
	}
	var units []index.Unit
	if err := json.Unmarshal(unitBytes, &units); err != nil {
		return nil, fmt.Errorf("%w: parsing units: %v", apperrors.ErrCorruptIndex, err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		units:    units,
	}, nil
}

// Search returns the postings of a gram within a field, or nil when the
// gram is not in the dictionary.
func (r *Reader) Search(field, gram string) (index.PostingList, error) {
	key := index.Key(field, gram)
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Key >= key
	})
	if idx >= len(r.dict) || r.dict[idx].Key != key {
		return nil, nil
	}
	entry := r.dict[idx]
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	return postings, nil
}

func (r *Reader) UnitCount() int {
	return len(r.units)
}

// Units returns the unit table in page, segment order.
func (r *Reader) Units() []index.Unit {
	return r.units
}

func (r *Reader) Close() error {
	return r.file.Close()
}
