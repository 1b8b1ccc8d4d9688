package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"
)

// Compression selects how collection files are compressed
type Compression uint8

const (
	NoCompression     Compression = 0x0
	SnappyCompression Compression = 0x1
	ZstdCompression   Compression = 0x2
	LZ4Compression    Compression = 0x3
)

// frameMagic marks a compressed collection file
var frameMagic = []byte("DDBZ")

// frameHeaderSize is magic + type + checksum
const frameHeaderSize = 4 + 1 + 8

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case ZstdCompression:
		return "zstd"
	case LZ4Compression:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression converts a configuration value into a Compression
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return NoCompression, nil
	case "snappy":
		return SnappyCompression, nil
	case "zstd":
		return ZstdCompression, nil
	case "lz4":
		return LZ4Compression, nil
	default:
		return NoCompression, fmt.Errorf("unknown compression %q, must be one of none, snappy, zstd, lz4", s)
	}
}

// --------------------------------------------------------------------------
// Framing
// --------------------------------------------------------------------------

// encodeFrame compresses data and prepends the frame header.
// With NoCompression the data is returned unchanged.
func encodeFrame(c Compression, data []byte) ([]byte, error) {
	if c == NoCompression {
		return data, nil
	}

	payload, err := compress(c, data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, frameHeaderSize, frameHeaderSize+len(payload))
	copy(out, frameMagic)
	out[4] = byte(c)
	binary.LittleEndian.PutUint64(out[5:frameHeaderSize], xxh3.Hash(payload))
	return append(out, payload...), nil
}

// decodeFrame returns the raw collection bytes of a file.
// Files without the frame magic are returned unchanged.
func decodeFrame(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, frameMagic) {
		return data, nil
	}
	if len(data) < frameHeaderSize {
		return nil, fmt.Errorf("%w: truncated frame header", ErrCorrupt)
	}

	c := Compression(data[4])
	sum := binary.LittleEndian.Uint64(data[5:frameHeaderSize])
	payload := data[frameHeaderSize:]
	if xxh3.Hash(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	raw, err := decompress(c, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return raw, nil
}

// --------------------------------------------------------------------------
// Codecs
// --------------------------------------------------------------------------

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case SnappyCompression:
		return snappy.Encode(nil, data), nil

	case ZstdCompression:
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, nil), nil

	case LZ4Compression:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case SnappyCompression:
		return snappy.Decode(nil, data)

	case ZstdCompression:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		return decoder.DecodeAll(data, nil)

	case LZ4Compression:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))

	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}
