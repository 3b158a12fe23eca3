// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the stream codec for journal exports.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// ParseCompression maps a user-supplied name to a Compression. The
// empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return CompressionNone, fmt.Errorf("unknown compression %q (want none, zstd, or lz4)", name)
}

// WriteExport writes entries as newline-delimited JSON through the
// selected compression codec.
func WriteExport(w io.Writer, entries []Entry, compression Compression) error {
	switch compression {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("journal: zstd writer: %w", err)
		}
		if err := writeNDJSON(encoder, entries); err != nil {
			encoder.Close()
			return err
		}
		return encoder.Close()
	case CompressionLZ4:
		encoder := lz4.NewWriter(w)
		if err := writeNDJSON(encoder, entries); err != nil {
			encoder.Close()
			return err
		}
		return encoder.Close()
	default:
		return writeNDJSON(w, entries)
	}
}

// ReadExport decodes an export stream written by WriteExport with the
// same compression.
func ReadExport(r io.Reader, compression Compression) ([]Entry, error) {
	switch compression {
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("journal: zstd reader: %w", err)
		}
		defer decoder.Close()
		return readNDJSON(decoder)
	case CompressionLZ4:
		return readNDJSON(lz4.NewReader(r))
	default:
		return readNDJSON(r)
	}
}

func writeNDJSON(w io.Writer, entries []Entry) error {
	encoder := json.NewEncoder(w)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("journal: encode entry %d: %w", entry.ID, err)
		}
	}
	return nil
}

func readNDJSON(r io.Reader) ([]Entry, error) {
	decoder := json.NewDecoder(r)
	var entries []Entry
	for {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("journal: decode export: %w", err)
		}
		entries = append(entries, entry)
	}
}
