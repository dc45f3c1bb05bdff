package backup

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/hupe1980/vecfs/codec"
)

// DefaultChunkBlocks is the chunk size used unless WithChunkBlocks is given.
const DefaultChunkBlocks = 256

type options struct {
	chunkBlocks uint64
	compression Compression
	concurrency int
	rateLimit   int
	manifest    codec.Codec
	logger      *slog.Logger
}

// Option configures Export and Import.
type Option func(*options)

// WithChunkBlocks sets how many device blocks go into one chunk.
func WithChunkBlocks(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkBlocks = n
		}
	}
}

// WithCompression selects the chunk codec. Import ignores it; the
// manifest records the codec of every chunk.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithConcurrency bounds the number of chunks in flight.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRateLimit caps transfer to bytesPerSec stored bytes per second.
// Zero disables the limit.
func WithRateLimit(bytesPerSec int) Option {
	return func(o *options) {
		o.rateLimit = bytesPerSec
	}
}

// WithManifestCodec selects the codec Export writes the manifest with
// (default codec.Default). Import reads the codec name from the manifest,
// so the option only affects Export. Only codecs known to codec.ByName can
// be read back.
func WithManifestCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.manifest = c
		}
	}
}

// WithLogger logs progress to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		chunkBlocks: DefaultChunkBlocks,
		compression: CompressionZstd,
		concurrency: 4,
		manifest:    codec.Default,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// limiter returns nil when no rate limit is set. The burst is at least
// largest, the biggest single WaitN the caller will make.
func (o options) limiter(largest int) *rate.Limiter {
	if o.rateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.rateLimit), max(o.rateLimit, largest))
}
