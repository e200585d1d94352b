package recorder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"toucan/internal/bus"
	"toucan/internal/schema"
)

var (
	ErrQueueFull      = errors.New("journal queue full")
	ErrClosed         = errors.New("journal writer closed")
	ErrNotStarted     = errors.New("journal writer not started")
	ErrAlreadyStarted = errors.New("journal writer already started")
)

// Writer appends records to rotating segment files from a bounded queue. A single
// goroutine owns the files, so records land in the order they were appended.
type Writer struct {
	cfg     Config
	queue   *bus.Queue[Record]
	done    chan struct{}
	err     atomic.Pointer[error]
	started atomic.Bool
}

// NewWriter validates cfg and ensures the journal directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{
		cfg:   cfg,
		queue: bus.NewQueue[Record](cfg.QueueSize),
		done:  make(chan struct{}),
	}, nil
}

// Start runs the writer loop in a new goroutine until ctx is done or Close is called.
func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go w.run(ctx)
	return nil
}

// Close stops accepting records, writes everything queued and closes the segment.
func (w *Writer) Close() error {
	w.queue.Close()
	if w.started.Load() {
		<-w.done
	}
	return w.Err()
}

// Err returns the first error observed by the writer loop.
func (w *Writer) Err() error {
	if p := w.err.Load(); p != nil {
		return *p
	}
	return nil
}

// TryAppend enqueues rec without blocking. The payload must not be modified afterwards.
func (w *Writer) TryAppend(rec Record) error {
	if err := w.accepting(rec); err != nil {
		return err
	}
	return w.queueErr(w.queue.TryPublish(w.stamp(rec)))
}

// Append enqueues rec, waiting for queue capacity until ctx is done.
func (w *Writer) Append(ctx context.Context, rec Record) error {
	if err := w.accepting(rec); err != nil {
		return err
	}
	return w.queueErr(w.queue.Publish(ctx, w.stamp(rec)))
}

func (w *Writer) accepting(rec Record) error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	if uint64(len(rec.Payload)) > maxPayloadLen {
		return ErrPayloadTooLarge
	}
	return nil
}

func (w *Writer) stamp(rec Record) Record {
	if rec.Header.Version == 0 {
		rec.Header.Version = schema.SchemaVersion
	}
	return rec
}

func (w *Writer) queueErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bus.ErrQueueFull):
		return ErrQueueFull
	case errors.Is(err, bus.ErrQueueClosed):
		return ErrClosed
	default:
		return err
	}
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)
	defer w.queue.Close()

	segs := &segments{cfg: w.cfg}
	defer func() { w.setErr(segs.close()) }()

	flushC, stopFlush := ticker(w.cfg.FlushInterval)
	defer stopFlush()
	syncC, stopSync := ticker(w.cfg.SyncInterval)
	defer stopSync()

	for {
		select {
		case <-ctx.Done():
			for {
				rec, ok := w.queue.TryRecv()
				if !ok {
					return
				}
				if err := segs.write(rec, time.Now().UTC()); err != nil {
					w.setErr(err)
					return
				}
			}
		case rec, ok := <-w.queue.C():
			if !ok {
				return
			}
			if err := segs.write(rec, time.Now().UTC()); err != nil {
				w.setErr(err)
				return
			}
		case <-flushC:
			if err := segs.flush(); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := segs.sync(); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	w.err.CompareAndSwap(nil, &err)
}

func ticker(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type segment struct {
	file     *os.File
	w        *bufio.Writer
	size     int64
	openedAt time.Time
}

// segments owns the open segment file and rotates it on size or age.
type segments struct {
	cfg   Config
	cur   *segment
	id    uint64
	frame []byte
}

func (s *segments) write(rec Record, now time.Time) error {
	size := frameSize(len(rec.Payload))
	if s.due(now, size) {
		if err := s.close(); err != nil {
			return err
		}
		if err := s.open(now); err != nil {
			return err
		}
	}
	s.frame = appendFrame(s.frame[:0], rec)
	if _, err := s.cur.w.Write(s.frame); err != nil {
		return err
	}
	s.cur.size += size
	return nil
}

func (s *segments) due(now time.Time, next int64) bool {
	switch {
	case s.cur == nil:
		return true
	case s.cur.size > 0 && s.cur.size+next > s.cfg.SegmentMaxBytes:
		return true
	case s.cfg.SegmentMaxDuration > 0 && now.Sub(s.cur.openedAt) >= s.cfg.SegmentMaxDuration:
		return true
	}
	return false
}

func (s *segments) open(now time.Time) error {
	ts := now.Format("20060102-150405")
	for {
		s.id++
		name := fmt.Sprintf("%s-%s-%06d%s", s.cfg.FilePrefix, ts, s.id, segmentSuffix)
		file, err := os.OpenFile(filepath.Join(s.cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return err
		}
		s.cur = &segment{file: file, w: bufio.NewWriterSize(file, s.cfg.BufferSize), openedAt: now}
		return nil
	}
}

func (s *segments) flush() error {
	if s.cur == nil {
		return nil
	}
	return s.cur.w.Flush()
}

func (s *segments) sync() error {
	if s.cur == nil {
		return nil
	}
	if err := s.cur.w.Flush(); err != nil {
		return err
	}
	return s.cur.file.Sync()
}

func (s *segments) close() error {
	if s.cur == nil {
		return nil
	}
	cur := s.cur
	s.cur = nil
	if err := cur.w.Flush(); err != nil {
		_ = cur.file.Close()
		return err
	}
	if err := cur.file.Sync(); err != nil {
		_ = cur.file.Close()
		return err
	}
	return cur.file.Close()
}

// Segments lists the segment files of prefix under dir in write order.
func Segments(dir, prefix string) ([]string, error) {
	if prefix == "" {
		prefix = defaultFilePrefix
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
