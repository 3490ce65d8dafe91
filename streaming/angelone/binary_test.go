package angelone

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bjoelf/ttconnect-go/model"
)

func ltpPacket(token string, tsMillis, ltpPaise int64) []byte {
	buf := make([]byte, ltpMinBytes)
	buf[0] = modeLTP
	copy(buf[2:27], []byte(token))
	binary.LittleEndian.PutUint64(buf[35:43], uint64(tsMillis))
	binary.LittleEndian.PutUint64(buf[43:51], uint64(ltpPaise))
	return buf
}

func TestDecodeTick_TooShort(t *testing.T) {
	_, ok := decodeTick(make([]byte, 10), nil)
	require.False(t, ok)
}

func TestDecodeTick_UnknownToken(t *testing.T) {
	buf := ltpPacket("12345", 0, 0)
	_, ok := decodeTick(buf, map[string]model.Instrument{})
	require.False(t, ok)
}

func TestDecodeTick_LTPMode(t *testing.T) {
	inst := model.NewEquity(model.NSE, "INFY")
	buf := ltpPacket("3045", 1700000000000, 153075)

	tick, ok := decodeTick(buf, map[string]model.Instrument{"3045": inst})
	require.True(t, ok)
	require.Equal(t, inst, tick.Instrument)
	require.InDelta(t, 1530.75, tick.LTP, 0.001)
	require.NotNil(t, tick.Timestamp)
	require.Equal(t, time.UnixMilli(1700000000000).UTC(), *tick.Timestamp)
	require.Nil(t, tick.Volume)
	require.Nil(t, tick.OI)
}

func TestDecodeTick_QuoteModeAddsVolume(t *testing.T) {
	inst := model.NewEquity(model.NSE, "INFY")
	buf := make([]byte, quoteMinBytes)
	buf[0] = modeQuote
	copy(buf[2:27], []byte("3045"))
	binary.LittleEndian.PutUint64(buf[43:51], 153075)
	binary.LittleEndian.PutUint64(buf[67:75], 42000)

	tick, ok := decodeTick(buf, map[string]model.Instrument{"3045": inst})
	require.True(t, ok)
	require.NotNil(t, tick.Volume)
	require.Equal(t, int64(42000), *tick.Volume)
}

func TestDecodeTick_SnapQuoteModeAddsOIAndDepth(t *testing.T) {
	inst := model.NewEquity(model.NSE, "INFY")
	buf := make([]byte, snapQuoteMinBytes)
	buf[0] = modeSnapQuote
	copy(buf[2:27], []byte("3045"))
	binary.LittleEndian.PutUint64(buf[43:51], 153075)
	binary.LittleEndian.PutUint64(buf[131:139], 9000)

	depth := buf[147:347]
	// best bid: flag 0, price 150000 paise == 1500.00
	binary.LittleEndian.PutUint16(depth[0:2], 0)
	binary.LittleEndian.PutUint64(depth[10:18], 150000)
	// best ask: flag 1, price 150100 paise == 1501.00
	binary.LittleEndian.PutUint16(depth[20:22], 1)
	binary.LittleEndian.PutUint64(depth[30:38], 150100)

	tick, ok := decodeTick(buf, map[string]model.Instrument{"3045": inst})
	require.True(t, ok)
	require.NotNil(t, tick.OI)
	require.Equal(t, int64(9000), *tick.OI)
	require.NotNil(t, tick.Bid)
	require.InDelta(t, 1500.0, *tick.Bid, 0.001)
	require.NotNil(t, tick.Ask)
	require.InDelta(t, 1501.0, *tick.Ask, 0.001)
}

func TestDecodeBest5Top_SkipsZeroPrices(t *testing.T) {
	block := make([]byte, 200)
	// first record: flag 0, price 0 (should be skipped)
	// second record: flag 0, price 99000
	binary.LittleEndian.PutUint16(block[20:22], 0)
	binary.LittleEndian.PutUint64(block[30:38], 99000)

	bid, ask := decodeBest5Top(block)
	require.NotNil(t, bid)
	require.InDelta(t, 990.0, *bid, 0.001)
	require.Nil(t, ask)
}
