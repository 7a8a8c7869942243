package store

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"git.home.luguber.info/inful/moklog/internal/render"
)

// Shared encoder and decoder; both are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

func compress(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return zstdEncoder.EncodeAll(data, nil)
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return zstdDecoder.DecodeAll(data, nil)
}

// pageMeta holds the output fields without their own column.
type pageMeta struct {
	Authors     []string  `json:"authors,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Date        time.Time `json:"date"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Indexed     bool      `json:"indexed"`
	Source      string    `json:"source,omitempty"`
}

func encodeMeta(o *render.Output) ([]byte, error) {
	return json.Marshal(pageMeta{
		Authors:     o.Authors,
		Tags:        o.Tags,
		Date:        o.Date,
		Fingerprint: o.Fingerprint,
		Indexed:     o.Indexed,
		Source:      o.SourcePath,
	})
}

func decodeMeta(data []byte, o *render.Output) error {
	var m pageMeta
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
	}
	o.Authors = m.Authors
	o.Tags = m.Tags
	o.Date = m.Date
	o.Fingerprint = m.Fingerprint
	o.Indexed = m.Indexed
	o.SourcePath = m.Source
	return nil
}
