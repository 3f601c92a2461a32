package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/unicode"
)

// maxDecodedSize bounds the size of decompressed input.
const maxDecodedSize = 256 << 20

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
	gzipMagic  = []byte{0x1F, 0x8B}
	zstdMagic  = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// decodeInput returns data as UTF-8 text without a byte order mark.
// gzip and zstd input is decompressed first; UTF-16 input with a BOM is
// transcoded.
func decodeInput(data []byte, format Format) ([]byte, error) {
	var err error
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		data, err = gunzip(data)
		if err != nil {
			return nil, newParseError(format, 0, "invalid gzip data", err)
		}
	case bytes.HasPrefix(data, zstdMagic):
		data, err = unzstd(data)
		if err != nil {
			return nil, newParseError(format, 0, "invalid zstd data", err)
		}
	}

	if bytes.HasPrefix(data, utf16LEBOM) || bytes.HasPrefix(data, utf16BEBOM) {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, newParseError(format, 0, "invalid UTF-16 text", err)
		}
		return decoded, nil
	}

	return bytes.TrimPrefix(data, utf8BOM), nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxDecodedSize {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", maxDecodedSize)
	}
	return out, nil
}

func unzstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
