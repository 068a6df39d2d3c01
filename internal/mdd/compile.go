package mdd

import (
	"io"

	"github.com/opensovd/mddc/internal/ir"
)

// BuildFile serializes a database and wraps it as a container file
// with a single diagnostic-description chunk.
func BuildFile(db *ir.Database, compression Compression, metadata map[string]string) (*File, error) {
	blob, err := Encode(db)
	if err != nil {
		return nil, err
	}
	name := db.EcuName
	if db.VariantName != "" {
		name = db.EcuName + "." + db.VariantName
	}
	return &File{
		EcuName:  db.EcuName,
		Revision: db.Revision,
		Metadata: metadata,
		Chunks: []Chunk{{
			ContentType: ContentDiagnosticDescription,
			Name:        name,
			Compression: compression,
			Payload:     blob,
		}},
	}, nil
}

// WriteDatabase is the one-call path from database to artifact stream.
func WriteDatabase(w io.Writer, db *ir.Database, compression Compression, metadata map[string]string) error {
	f, err := BuildFile(db, compression, metadata)
	if err != nil {
		return err
	}
	return Write(w, f)
}

// ReadDatabase parses an artifact stream back into a database.
func ReadDatabase(r io.Reader) (*ir.Database, *File, error) {
	f, err := Read(r)
	if err != nil {
		return nil, nil, err
	}
	blob, err := f.DiagnosticDescription()
	if err != nil {
		return nil, nil, err
	}
	db, err := Decode(blob)
	if err != nil {
		return nil, nil, err
	}
	return db, f, nil
}
