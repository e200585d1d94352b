package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yanun0323/logs"
)

var ErrNilHandler = errors.New("playback handler is nil")

// PlaybackConfig controls journal playback.
type PlaybackConfig struct {
	Dir        string `json:"dir"`
	FilePrefix string `json:"filePrefix"`
	// Speed paces records by their event time; 0 replays as fast as possible, 2 twice as fast.
	Speed           float64 `json:"speed"`
	UseRecvTime     bool    `json:"useRecvTime"`
	DisableChecksum bool    `json:"disableChecksum"`
	MaxPayloadSize  int     `json:"maxPayloadSize"`
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks that the config is usable.
func (c PlaybackConfig) Validate() error {
	switch {
	case c.Dir == "":
		return fmt.Errorf("%w: playback dir is empty", ErrInvalidConfig)
	case c.Speed < 0:
		return fmt.Errorf("%w: playback speed must be >= 0", ErrInvalidConfig)
	case c.MaxPayloadSize < 0:
		return fmt.Errorf("%w: playback max payload size must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Sleeper waits between paced records.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays journal segments in write order.
type Playback struct {
	cfg     PlaybackConfig
	sleeper Sleeper
}

// NewPlayback validates cfg and creates a playback.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, sleeper: timerSleeper{}}, nil
}

// WithSleeper replaces the pacing sleeper.
func (p *Playback) WithSleeper(s Sleeper) *Playback {
	if s != nil {
		p.sleeper = s
	}
	return p
}

// Run calls handler for every record. A torn record at the tail of the last segment
// ends playback without error; anywhere else it is returned.
func (p *Playback) Run(ctx context.Context, handler func(Record) error) error {
	if handler == nil {
		return ErrNilHandler
	}
	files, err := Segments(p.cfg.Dir, p.cfg.FilePrefix)
	if err != nil {
		return err
	}

	var prevTS int64
	for i, path := range files {
		err := p.playFile(ctx, path, handler, &prevTS)
		if errors.Is(err, ErrTruncated) && i == len(files)-1 {
			logs.Errorf("journal %s ends with a torn record, stop playback", path)
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(Record) error, prevTS *int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxPayloadSize:  p.cfg.MaxPayloadSize,
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := p.pace(ctx, rec, prevTS); err != nil {
			return err
		}
		if err := handler(rec); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, rec Record, prevTS *int64) error {
	if p.cfg.Speed <= 0 {
		return nil
	}
	current := rec.Header.TsEvent
	if p.cfg.UseRecvTime {
		current = rec.Header.TsRecv
	}
	if current <= 0 {
		return nil
	}
	if *prevTS > 0 && current > *prevTS {
		if err := p.sleeper.Sleep(ctx, time.Duration(float64(current-*prevTS)/p.cfg.Speed)); err != nil {
			return err
		}
	}
	*prevTS = current
	return nil
}
