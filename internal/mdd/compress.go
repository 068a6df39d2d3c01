package mdd

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz/lzma"
)

// Compression selects the per-chunk payload codec.
type Compression string

const (
	CompressNone Compression = ""
	CompressGzip Compression = "gzip"
	CompressZstd Compression = "zstd"
	CompressLzma Compression = "lzma"
)

// ParseCompression maps a user-facing name to a codec. "none" and the
// empty string both select no compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressNone, nil
	case "gzip":
		return CompressGzip, nil
	case "zstd":
		return CompressZstd, nil
	case "lzma":
		return CompressLzma, nil
	default:
		return CompressNone, serErr(CodeCompression, "unknown compression %q", s)
	}
}

func compress(data []byte, algo Compression) ([]byte, error) {
	switch algo {
	case CompressNone:
		return data, nil

	case CompressGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, serErr(CodeCompression, "gzip: %v", err)
		}
		if err := w.Close(); err != nil {
			return nil, serErr(CodeCompression, "gzip: %v", err)
		}
		return buf.Bytes(), nil

	case CompressZstd:
		w, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, serErr(CodeCompression, "zstd: %v", err)
		}
		defer w.Close()
		return w.EncodeAll(data, nil), nil

	case CompressLzma:
		var buf bytes.Buffer
		w, err := lzma.NewWriter(&buf)
		if err != nil {
			return nil, serErr(CodeCompression, "lzma: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, serErr(CodeCompression, "lzma: %v", err)
		}
		if err := w.Close(); err != nil {
			return nil, serErr(CodeCompression, "lzma: %v", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, serErr(CodeCompression, "unknown compression %q", algo)
	}
}

func decompress(data []byte, algo Compression) ([]byte, error) {
	switch algo {
	case CompressNone:
		return data, nil

	case CompressGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, serErr(CodeCompression, "gzip: %v", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, serErr(CodeCompression, "gzip: %v", err)
		}
		return out, nil

	case CompressZstd:
		r, err := zstd.NewReader(nil)
		if err != nil {
			return nil, serErr(CodeCompression, "zstd: %v", err)
		}
		defer r.Close()
		out, err := r.DecodeAll(data, nil)
		if err != nil {
			return nil, serErr(CodeCompression, "zstd: %v", err)
		}
		return out, nil

	case CompressLzma:
		r, err := lzma.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, serErr(CodeCompression, "lzma: %v", err)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, serErr(CodeCompression, "lzma: %v", err)
		}
		return out, nil

	default:
		return nil, serErr(CodeCompression, "unknown compression %q", algo)
	}
}
