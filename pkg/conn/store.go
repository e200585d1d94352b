package conn

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"toucan/internal/schema"
	"toucan/pkg/exception"
)

// PositionExitRecord is one closed position row.
type PositionExitRecord struct {
	ID                uint64          `gorm:"primaryKey"`
	Session           string          `gorm:"size:64;index:idx_position_exit_session"`
	Instrument        string          `gorm:"size:64;index:idx_position_exit_session"`
	Side              uint8           `gorm:"not null"`
	PriceEntryAverage decimal.Decimal `gorm:"type:numeric;not null"`
	QuantityAbsMax    decimal.Decimal `gorm:"type:numeric;not null"`
	PnlRealised       decimal.Decimal `gorm:"type:numeric;not null"`
	FeesEnterAsset    string          `gorm:"size:32"`
	FeesEnter         decimal.Decimal `gorm:"type:numeric;not null"`
	FeesExitAsset     string          `gorm:"size:32"`
	FeesExit          decimal.Decimal `gorm:"type:numeric;not null"`
	TimeEnter         time.Time       `gorm:"not null"`
	TimeExit          time.Time       `gorm:"not null;index"`
	Trades            string          `gorm:"type:text"`
	CreatedAt         time.Time
}

func (PositionExitRecord) TableName() string {
	return "position_exits"
}

const tradeSep = ","

// NewPositionExitRecord converts a closed position of session into a row.
func NewPositionExitRecord(session string, exited schema.PositionExited) PositionExitRecord {
	trades := make([]string, 0, len(exited.Trades))
	for _, id := range exited.Trades {
		trades = append(trades, string(id))
	}
	return PositionExitRecord{
		Session:           session,
		Instrument:        string(exited.Instrument),
		Side:              uint8(exited.Side),
		PriceEntryAverage: exited.PriceEntryAverage,
		QuantityAbsMax:    exited.QuantityAbsMax,
		PnlRealised:       exited.PnlRealised,
		FeesEnterAsset:    string(exited.FeesEnter.Asset),
		FeesEnter:         exited.FeesEnter.Fees,
		FeesExitAsset:     string(exited.FeesExit.Asset),
		FeesExit:          exited.FeesExit.Fees,
		TimeEnter:         exited.TimeEnter.UTC(),
		TimeExit:          exited.TimeExit.UTC(),
		Trades:            strings.Join(trades, tradeSep),
	}
}

// PositionExited converts the row back into a closed position.
func (r PositionExitRecord) PositionExited() schema.PositionExited {
	var trades []schema.TradeID
	if r.Trades != "" {
		for _, id := range strings.Split(r.Trades, tradeSep) {
			trades = append(trades, schema.TradeID(id))
		}
	}
	return schema.PositionExited{
		Instrument:        schema.InstrumentKey(r.Instrument),
		Side:              schema.Side(r.Side),
		PriceEntryAverage: r.PriceEntryAverage,
		QuantityAbsMax:    r.QuantityAbsMax,
		PnlRealised:       r.PnlRealised,
		FeesEnter:         schema.AssetFees{Asset: schema.AssetKey(r.FeesEnterAsset), Fees: r.FeesEnter},
		FeesExit:          schema.AssetFees{Asset: schema.AssetKey(r.FeesExitAsset), Fees: r.FeesExit},
		TimeEnter:         r.TimeEnter,
		TimeExit:          r.TimeExit,
		Trades:            trades,
	}
}

// PositionStore saves closed positions of one trading session.
type PositionStore struct {
	db      *gorm.DB
	session string
}

// NewPositionStore stores rows tagged with session through db.
func NewPositionStore(db *gorm.DB, session string) (*PositionStore, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "position store db")
	}
	return &PositionStore{db: db, session: session}, nil
}

// Migrate creates or updates the position table.
func (s *PositionStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&PositionExitRecord{}); err != nil {
		return errors.Wrap(err, "migrate position exits")
	}
	return nil
}

// SavePositionExit inserts one closed position.
func (s *PositionStore) SavePositionExit(ctx context.Context, exited schema.PositionExited) error {
	record := NewPositionExitRecord(s.session, exited)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrapf(err, "save position exit, instrument: %s", exited.Instrument)
	}
	return nil
}

// PositionExits lists the closed positions of the session in exit order. An empty
// instrument lists every instrument.
func (s *PositionStore) PositionExits(ctx context.Context, instrument schema.InstrumentKey) ([]schema.PositionExited, error) {
	query := s.db.WithContext(ctx).Where("session = ?", s.session)
	if instrument != "" {
		query = query.Where("instrument = ?", string(instrument))
	}

	var records []PositionExitRecord
	if err := query.Order("time_exit, id").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "list position exits")
	}

	out := make([]schema.PositionExited, 0, len(records))
	for _, r := range records {
		out = append(out, r.PositionExited())
	}
	return out, nil
}
