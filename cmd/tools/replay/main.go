package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"toucan/internal/clock"
	"toucan/internal/engine"
	"toucan/internal/og"
	"toucan/internal/ops"
	"toucan/internal/recorder"
	"toucan/internal/state"
	"toucan/internal/strategy"
)

// discardTx accepts every request. Replayed account events already carry the responses.
type discardTx struct{}

func (discardTx) Send(og.Request) error { return nil }

func main() {
	dir := flag.String("dir", "testdata/journal", "Journal directory")
	prefix := flag.String("prefix", "", "Journal file prefix (default: wal)")
	configPath := flag.String("config", "", "Path to JSON config the journal was recorded with")
	snapshotPath := flag.String("snapshot", "", "Snapshot to verify against (default: <dir>/snapshot.json)")
	session := flag.String("session", "paper", "Client order id prefix of the recorded session")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	useRecv := flag.Bool("use-recv-time", false, "Use receive timestamp for pacing")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	list := flag.Bool("list", false, "Only list journal records")
	flag.Parse()

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		Speed:           *speed,
		UseRecvTime:     *useRecv,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	})
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	ctx := context.Background()
	if *list {
		if err := listRecords(ctx, pb); err != nil {
			log.Fatalf("playback run failed: %v", err)
		}
		return
	}

	if *configPath == "" {
		log.Fatalf("config is required")
	}
	if *snapshotPath == "" {
		*snapshotPath = filepath.Join(*dir, "snapshot.json")
	}
	if err := verify(ctx, pb, *configPath, *snapshotPath, *session); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
}

func listRecords(ctx context.Context, pb *recorder.Playback) error {
	index := 0
	return pb.Run(ctx, func(rec recorder.Record) error {
		index++
		h := rec.Header
		fmt.Printf("%06d seq=%d type=%s source=%d flags=%#x ts_event=%d ts_recv=%d len=%d\n",
			index, h.Seq, h.Type, h.Source, h.Flags, h.TsEvent, h.TsRecv, len(rec.Payload))
		return nil
	})
}

func verify(ctx context.Context, pb *recorder.Playback, configPath, snapshotPath, session string) error {
	loaded, err := ops.Load(configPath)
	if err != nil {
		return err
	}
	expected, err := state.ReadSnapshot(snapshotPath)
	if err != nil {
		return err
	}

	start := expected.StartTime()
	txs := og.NewTxMap()
	for _, route := range loaded.Routes {
		txs.Register(route.Exchange, discardTx{})
	}
	e := engine.New(
		clock.NewHistorical(start),
		loaded.StateBuilder(start).Build(),
		txs,
		loaded.NewStrategy(strategy.SequentialCID(session)),
		ops.NewRuntimeConfig(loaded.Risk),
	)

	var unrecoverable int
	n, err := recorder.Replay(ctx, pb, e, func(audit engine.Audit) error {
		if audit.HasUnrecoverable() {
			unrecoverable++
		}
		return nil
	})
	if err != nil {
		return err
	}

	actual := e.State().Snapshot(e.Meta().Sequence, e.Time().UnixNano())
	if err := state.CompareSnapshots(expected, actual); err != nil {
		return err
	}
	log.Printf("replay verified, events: %d, last_seq: %d, unrecoverable audits: %d", n, expected.LastSeq, unrecoverable)
	return nil
}
