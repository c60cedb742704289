package importer

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/anaminus/parse"
	"github.com/bkaradzic/go-lz4"
	"github.com/rszkit/rszfile/errors"
	"golang.org/x/crypto/blake2b"
)

// CacheMagic begins every import cache file.
const CacheMagic = "RSZC"

// CacheVersion is the version of the import cache format.
const CacheVersion = 1

const cacheHeaderSize = 4 + 4 + blake2b.Size256 + 8 + 8

// CacheHeader describes the content of an import cache file.
type CacheHeader struct {
	Version uint32
	// Sum is the blake2b-256 hash of the source file.
	Sum [blake2b.Size256]byte
	// Schema is the fingerprint of the schema the file was imported with.
	Schema uint64
	// Length is the length of the source file.
	Length uint64
}

// Stamp returns the header of an import of src under a schema.
func Stamp(src []byte, schema uint64) CacheHeader {
	return CacheHeader{
		Version: CacheVersion,
		Sum:     blake2b.Sum256(src),
		Schema:  schema,
		Length:  uint64(len(src)),
	}
}

// EncodeCache returns an import cache file holding a compressed copy of src.
func EncodeCache(src []byte, schema uint64) ([]byte, error) {
	h := Stamp(src, schema)
	payload, err := lz4.Encode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}

	var buf bytes.Buffer
	fw := parse.NewBinaryWriter(&buf)
	fw.Bytes([]byte(CacheMagic))
	fw.Number(h.Version)
	fw.Bytes(h.Sum[:])
	fw.Number(h.Schema)
	fw.Number(h.Length)
	fw.Bytes(payload)
	if _, err := fw.End(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readCacheHeader(r io.Reader) (h CacheHeader, err error) {
	fr := parse.NewBinaryReader(r)
	magic := make([]byte, len(CacheMagic))
	if fr.Bytes(magic) {
		_, err = fr.End()
		return h, err
	}
	if string(magic) != CacheMagic {
		return h, errors.New("not an import cache file")
	}
	fr.Number(&h.Version)
	fr.Bytes(h.Sum[:])
	fr.Number(&h.Schema)
	fr.Number(&h.Length)
	if _, err := fr.End(); err != nil {
		return h, err
	}
	if h.Version != CacheVersion {
		return h, fmt.Errorf("unsupported import cache version %d", h.Version)
	}
	return h, nil
}

// DecodeCache returns the header and the source bytes of an import cache
// file.
func DecodeCache(b []byte) (CacheHeader, []byte, error) {
	h, err := readCacheHeader(bytes.NewReader(b))
	if err != nil {
		return h, nil, err
	}
	src, err := lz4.Decode(nil, b[cacheHeaderSize:])
	if err != nil {
		return h, nil, fmt.Errorf("lz4: %w", err)
	}
	if uint64(len(src)) != h.Length {
		return h, nil, fmt.Errorf("import cache holds %d bytes, expected %d", len(src), h.Length)
	}
	if blake2b.Sum256(src) != h.Sum {
		return h, nil, errors.New("import cache content does not match its hash")
	}
	return h, src, nil
}

// ReadCacheHeader reads the header of the import cache file at path.
func ReadCacheHeader(path string) (CacheHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return CacheHeader{}, err
	}
	defer f.Close()
	return readCacheHeader(f)
}
