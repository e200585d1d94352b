package conn

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toucan/internal/schema"
	"toucan/pkg/exception"
)

func TestOptionDSN(t *testing.T) {
	testCases := []struct {
		desc string
		opt  Option
		want string
	}{
		{
			desc: "defaults",
			want: "postgres://localhost:5432?sslmode=disable",
		},
		{
			desc: "full",
			opt: Option{
				Host: "db", Port: 6543, User: "toucan", Password: "secret", Database: "trades",
				SSLMode: "require", Params: map[string]string{"application_name": "trader", "": "skipped"},
			},
			want: "postgres://toucan:secret@db:6543/trades?application_name=trader&sslmode=require",
		},
		{
			desc: "user without password",
			opt:  Option{User: "toucan"},
			want: "postgres://toucan@localhost:5432?sslmode=disable",
		},
		{
			desc: "conn string wins",
			opt:  Option{Host: "ignored", ConnString: "host=db user=toucan"},
			want: "host=db user=toucan",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.opt.DSN())
		})
	}

	assert.NotContains(t, Option{User: "u", Password: "secret"}.redacted(), "secret")
}

func TestPositionExitRecordRoundTrip(t *testing.T) {
	enter := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	exited := schema.PositionExited{
		Instrument:        "inst0",
		Side:              schema.SideSell,
		PriceEntryAverage: decimal.RequireFromString("10000.5"),
		QuantityAbsMax:    decimal.RequireFromString("1.25"),
		PnlRealised:       decimal.RequireFromString("-0.065"),
		FeesEnter:         schema.QuoteFees(decimal.RequireFromString("0.01")),
		FeesExit:          schema.QuoteFees(decimal.RequireFromString("0.02")),
		TimeEnter:         enter,
		TimeExit:          enter.Add(time.Hour),
		Trades:            []schema.TradeID{"t1", "t2"},
	}

	record := NewPositionExitRecord("session", exited)
	assert.Equal(t, "session", record.Session)
	assert.Equal(t, "t1,t2", record.Trades)
	assert.Equal(t, "position_exits", record.TableName())

	got := record.PositionExited()
	assert.Equal(t, exited.Instrument, got.Instrument)
	assert.Equal(t, exited.Side, got.Side)
	assert.True(t, exited.PriceEntryAverage.Equal(got.PriceEntryAverage))
	assert.True(t, exited.QuantityAbsMax.Equal(got.QuantityAbsMax))
	assert.True(t, exited.PnlRealised.Equal(got.PnlRealised))
	assert.Equal(t, exited.FeesEnter.Asset, got.FeesEnter.Asset)
	assert.True(t, exited.FeesExit.Fees.Equal(got.FeesExit.Fees))
	assert.Equal(t, exited.TimeExit, got.TimeExit)
	assert.Equal(t, exited.Trades, got.Trades)

	assert.Nil(t, PositionExitRecord{}.PositionExited().Trades)
}

func TestNewPositionStoreNilDB(t *testing.T) {
	_, err := NewPositionStore(nil, "session")
	require.Error(t, err)
	assert.Contains(t, err.Error(), exception.ErrNilInstance.Error())
}
