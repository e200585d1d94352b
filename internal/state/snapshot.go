package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"toucan/internal/schema"
)

// Snapshot captures the comparable part of an EngineState at a point in time.
type Snapshot struct {
	LastSeq      uint64                `json:"lastSeq"`
	TimeStart    int64                 `json:"timeStart"`
	TimeEngine   int64                 `json:"timeEngine"`
	Trading      TradingState          `json:"trading"`
	Global       Health                `json:"global"`
	Connectivity []ConnectivityEntry   `json:"connectivity"`
	Balances     []schema.AssetBalance `json:"balances"`
	Instruments  []InstrumentEntry     `json:"instruments"`
}

// ConnectivityEntry is the link health of one exchange.
type ConnectivityEntry struct {
	Exchange schema.ExchangeID `json:"exchange"`
	ConnectivityState
}

// InstrumentEntry is the position and active orders of one instrument.
type InstrumentEntry struct {
	Instrument schema.InstrumentKey `json:"instrument"`
	Position   *Position            `json:"position,omitempty"`
	Orders     []schema.Order       `json:"orders"`
	Pnl        decimal.Decimal      `json:"pnl"`
}

// Snapshot builds a snapshot of s tagged with the last processed sequence and engine time.
func (s *EngineState) Snapshot(lastSeq uint64, timeEngine int64) Snapshot {
	snap := Snapshot{
		LastSeq:    lastSeq,
		TimeEngine: timeEngine,
		Trading:    s.Trading,
		Global:     s.Connectivity.Global,
	}
	for _, exchange := range s.Connectivity.Exchanges() {
		c, _ := s.Connectivity.Connectivity(exchange)
		snap.Connectivity = append(snap.Connectivity, ConnectivityEntry{Exchange: exchange, ConnectivityState: c})
	}
	for _, asset := range s.Assets.All() {
		if asset.Balance == nil {
			continue
		}
		snap.Balances = append(snap.Balances, schema.AssetBalance{
			Asset:        asset.Asset,
			Balance:      asset.Balance.Value,
			TimeExchange: asset.Balance.Time,
		})
	}
	for _, inst := range s.Instruments.Filtered(NoFilter()) {
		entry := InstrumentEntry{
			Instrument: inst.Key,
			Orders:     inst.Orders.All(),
			Pnl:        inst.TearSheet.PnlReturns.PnlRaw,
		}
		if inst.Position.Current != nil {
			p := *inst.Position.Current
			entry.Position = &p
		}
		snap.Instruments = append(snap.Instruments, entry)
	}
	return snap
}

// StartTime is the engine start time a replay must build its state with. Snapshots
// without one start at the Unix epoch.
func (s Snapshot) StartTime() time.Time {
	return time.Unix(0, s.TimeStart).UTC()
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := sonic.ConfigStd.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := sonic.ConfigStd.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots hold the same state. Sequence and time metadata
// are not compared.
func CompareSnapshots(expected, actual Snapshot) error {
	if expected.Trading != actual.Trading {
		return fmt.Errorf("snapshot trading mismatch: expected=%s actual=%s", expected.Trading, actual.Trading)
	}
	if expected.Global != actual.Global {
		return fmt.Errorf("snapshot global health mismatch: expected=%s actual=%s", expected.Global, actual.Global)
	}

	if len(expected.Balances) != len(actual.Balances) {
		return fmt.Errorf("snapshot balance length mismatch: expected=%d actual=%d", len(expected.Balances), len(actual.Balances))
	}
	balances := make(map[schema.AssetKey]schema.Balance, len(expected.Balances))
	for _, b := range expected.Balances {
		balances[b.Asset] = b.Balance
	}
	for _, b := range actual.Balances {
		want, ok := balances[b.Asset]
		if !ok {
			return fmt.Errorf("snapshot missing asset: %s", b.Asset)
		}
		if !want.Equal(b.Balance) {
			return fmt.Errorf("snapshot balance mismatch: asset=%s expected=%s/%s actual=%s/%s",
				b.Asset, want.Total, want.Free, b.Balance.Total, b.Balance.Free)
		}
	}

	if len(expected.Instruments) != len(actual.Instruments) {
		return fmt.Errorf("snapshot instrument length mismatch: expected=%d actual=%d", len(expected.Instruments), len(actual.Instruments))
	}
	instruments := make(map[schema.InstrumentKey]InstrumentEntry, len(expected.Instruments))
	for _, entry := range expected.Instruments {
		instruments[entry.Instrument] = entry
	}
	for _, entry := range actual.Instruments {
		want, ok := instruments[entry.Instrument]
		if !ok {
			return fmt.Errorf("snapshot missing instrument: %s", entry.Instrument)
		}
		if !want.Pnl.Equal(entry.Pnl) {
			return fmt.Errorf("snapshot pnl mismatch: instrument=%s expected=%s actual=%s", entry.Instrument, want.Pnl, entry.Pnl)
		}
		if err := comparePositions(entry.Instrument, want.Position, entry.Position); err != nil {
			return err
		}
		if len(want.Orders) != len(entry.Orders) {
			return fmt.Errorf("snapshot order length mismatch: instrument=%s expected=%d actual=%d",
				entry.Instrument, len(want.Orders), len(entry.Orders))
		}
		for i := range want.Orders {
			if want.Orders[i].Key.CID != entry.Orders[i].Key.CID || want.Orders[i].State.Status != entry.Orders[i].State.Status {
				return fmt.Errorf("snapshot order mismatch: instrument=%s cid=%s status expected=%s actual=%s",
					entry.Instrument, want.Orders[i].Key.CID, want.Orders[i].State.Status, entry.Orders[i].State.Status)
			}
		}
	}
	return nil
}

func comparePositions(instrument schema.InstrumentKey, expected, actual *Position) error {
	switch {
	case expected == nil && actual == nil:
		return nil
	case expected == nil || actual == nil:
		return fmt.Errorf("snapshot position presence mismatch: instrument=%s expected=%t actual=%t",
			instrument, expected != nil, actual != nil)
	}
	if expected.Side != actual.Side || !expected.QuantityAbs.Equal(actual.QuantityAbs) {
		return fmt.Errorf("snapshot position mismatch: instrument=%s expected=%s %s actual=%s %s",
			instrument, expected.Side, expected.QuantityAbs, actual.Side, actual.QuantityAbs)
	}
	if !expected.PnlRealised.Equal(actual.PnlRealised) {
		return fmt.Errorf("snapshot position pnl mismatch: instrument=%s expected=%s actual=%s",
			instrument, expected.PnlRealised, actual.PnlRealised)
	}
	return nil
}
