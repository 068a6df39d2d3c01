package mdd

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Magic is the fixed 20-byte header every MDD file starts with.
const Magic = "MDD version 0      \x00"

// FormatVersion is the container record version this package writes.
const FormatVersion = 1

// ContentType tags what a chunk carries. Exactly one
// ContentDiagnosticDescription chunk is required per file; everything
// else passes through opaquely.
type ContentType uint32

const (
	ContentDiagnosticDescription ContentType = 0
	ContentJarFile               ContentType = 1
	ContentJarFilePartial        ContentType = 2
	ContentEmbeddedFile          ContentType = 3
	ContentVendorSpecific        ContentType = 1024
)

func (c ContentType) String() string {
	switch c {
	case ContentDiagnosticDescription:
		return "diagnostic-description"
	case ContentJarFile:
		return "jar"
	case ContentJarFilePartial:
		return "jar-partial"
	case ContentEmbeddedFile:
		return "embedded-file"
	case ContentVendorSpecific:
		return "vendor-specific"
	default:
		return fmt.Sprintf("content-type(%d)", uint32(c))
	}
}

// Chunk is one payload of the container. Payload holds the
// uncompressed bytes in memory; compression applies on write.
type Chunk struct {
	ContentType ContentType
	Name        string
	Compression Compression
	Payload     []byte
}

// File is the decoded container: identification, free-form metadata,
// and the ordered chunk list.
type File struct {
	FormatVersion uint32
	EcuName       string
	Revision      string
	Metadata      map[string]string
	Chunks        []Chunk
}

// Container record field numbers. Frozen; append only.
const (
	fFileVersion  = 1
	fFileEcuName  = 2
	fFileRevision = 3
	fFileMetadata = 4
	fFileChunk    = 5

	fChunkContentType = 1
	fChunkName        = 2
	fChunkCompression = 3
	fChunkUncompSize  = 4
	fChunkPayload     = 5
)

// DiagnosticDescription returns the file's single diagnostic
// description payload.
func (f *File) DiagnosticDescription() ([]byte, error) {
	for i := range f.Chunks {
		if f.Chunks[i].ContentType == ContentDiagnosticDescription {
			return f.Chunks[i].Payload, nil
		}
	}
	return nil, serErr(CodeChunkCount, "no diagnostic-description chunk")
}

func (f *File) validate() error {
	count := 0
	for i := range f.Chunks {
		if f.Chunks[i].ContentType == ContentDiagnosticDescription {
			count++
		}
	}
	if count != 1 {
		return serErr(CodeChunkCount,
			"exactly one diagnostic-description chunk required, found %d", count)
	}
	return nil
}

// Write emits magic, record length, and the container record. Chunk
// payloads are compressed per their declared algorithm.
func Write(w io.Writer, f *File) error {
	if err := f.validate(); err != nil {
		return err
	}

	var rec []byte
	version := f.FormatVersion
	if version == 0 {
		version = FormatVersion
	}
	rec = protowire.AppendTag(rec, fFileVersion, protowire.VarintType)
	rec = protowire.AppendVarint(rec, uint64(version))
	rec = appendString(rec, fFileEcuName, f.EcuName)
	rec = appendString(rec, fFileRevision, f.Revision)
	for _, key := range sortedStringKeys(f.Metadata) {
		var kv []byte
		kv = appendString(kv, fNamedName, key)
		kv = appendString(kv, fNamedValue, f.Metadata[key])
		rec = appendMessage(rec, fFileMetadata, kv)
	}
	for i := range f.Chunks {
		msg, err := encodeChunk(&f.Chunks[i])
		if err != nil {
			return err
		}
		rec = appendMessage(rec, fFileChunk, msg)
	}

	if _, err := io.WriteString(w, Magic); err != nil {
		return err
	}
	if _, err := w.Write(binary.AppendUvarint(nil, uint64(len(rec)))); err != nil {
		return err
	}
	_, err := w.Write(rec)
	return err
}

func encodeChunk(c *Chunk) ([]byte, error) {
	payload, err := compress(c.Payload, c.Compression)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendUint(b, fChunkContentType, uint64(c.ContentType))
	b = appendString(b, fChunkName, c.Name)
	b = appendString(b, fChunkCompression, string(c.Compression))
	if c.Compression != CompressNone {
		b = appendUint(b, fChunkUncompSize, uint64(len(c.Payload)))
	}
	b = protowire.AppendTag(b, fChunkPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b, nil
}

// Read parses a container, verifying the magic and decompressing every
// chunk payload.
func Read(r io.Reader) (*File, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, serErr(CodeBadMagic, "short header: %v", err)
	}
	if string(magic) != Magic {
		return nil, serErr(CodeBadMagic, "not an MDD file")
	}

	br := byteReaderFrom(r)
	size, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, serErr(CodeBadContainer, "record length: %v", err)
	}
	rec := make([]byte, size)
	if _, err := io.ReadFull(br, rec); err != nil {
		return nil, serErr(CodeBadContainer, "short record: %v", err)
	}

	f := &File{Metadata: make(map[string]string)}
	err = walk(rec, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fFileVersion:
			f.FormatVersion = uint32(asUint(data))
		case fFileEcuName:
			f.EcuName = asString(data)
		case fFileRevision:
			f.Revision = asString(data)
		case fFileMetadata:
			var key, value string
			err := walk(data, func(n protowire.Number, _ protowire.Type, kv []byte) error {
				switch n {
				case fNamedName:
					key = asString(kv)
				case fNamedValue:
					value = asString(kv)
				}
				return nil
			})
			if err != nil {
				return err
			}
			f.Metadata[key] = value
		case fFileChunk:
			chunk, err := decodeChunk(data)
			if err != nil {
				return err
			}
			f.Chunks = append(f.Chunks, *chunk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeChunk(msg []byte) (*Chunk, error) {
	c := &Chunk{}
	var uncompressedSize uint64
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fChunkContentType:
			c.ContentType = ContentType(asUint(data))
		case fChunkName:
			c.Name = asString(data)
		case fChunkCompression:
			c.Compression = Compression(asString(data))
		case fChunkUncompSize:
			uncompressedSize = asUint(data)
		case fChunkPayload:
			c.Payload = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := decompress(c.Payload, c.Compression)
	if err != nil {
		return nil, err
	}
	if c.Compression != CompressNone && uncompressedSize != 0 && uint64(len(payload)) != uncompressedSize {
		return nil, serErr(CodeBadContainer,
			"chunk %q: uncompressed size %d does not match hint %d", c.Name, len(payload), uncompressedSize)
	}
	c.Payload = payload
	return c, nil
}

type byteReader struct {
	io.Reader
	buf [1]byte
}

func byteReaderFrom(r io.Reader) *byteReader {
	if br, ok := r.(*byteReader); ok {
		return br
	}
	return &byteReader{Reader: r}
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.Reader, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}
