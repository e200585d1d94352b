package recorder

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultSegmentMaxBytes int64 = 256 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "journal"
	segmentSuffix                = ".wal"
)

var defaultSegmentMaxDuration = time.Hour

var ErrInvalidConfig = errors.New("invalid recorder config")

// Config controls the journal writer.
type Config struct {
	Dir                string        `json:"dir"`
	FilePrefix         string        `json:"filePrefix"`
	SegmentMaxBytes    int64         `json:"segmentMaxBytes"`
	SegmentMaxDuration time.Duration `json:"segmentMaxDuration"`
	QueueSize          int           `json:"queueSize"`
	BufferSize         int           `json:"bufferSize"`
	FlushInterval      time.Duration `json:"flushInterval"`
	SyncInterval       time.Duration `json:"syncInterval"`
	// Source is stamped on every record header written through a Journal.
	Source uint16 `json:"source"`
}

// DefaultConfig returns a baseline journal configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		FilePrefix:         defaultFilePrefix,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
	}
}

func (c Config) withDefaults() Config {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return fmt.Errorf("%w: dir is empty", ErrInvalidConfig)
	case c.FilePrefix == "":
		return fmt.Errorf("%w: file prefix is empty", ErrInvalidConfig)
	case c.SegmentMaxBytes <= 0:
		return fmt.Errorf("%w: segment max bytes must be > 0", ErrInvalidConfig)
	case c.SegmentMaxDuration < 0:
		return fmt.Errorf("%w: segment max duration must be >= 0", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be > 0", ErrInvalidConfig)
	case c.BufferSize <= 0:
		return fmt.Errorf("%w: buffer size must be > 0", ErrInvalidConfig)
	case c.FlushInterval < 0:
		return fmt.Errorf("%w: flush interval must be >= 0", ErrInvalidConfig)
	case c.SyncInterval < 0:
		return fmt.Errorf("%w: sync interval must be >= 0", ErrInvalidConfig)
	}
	return nil
}
