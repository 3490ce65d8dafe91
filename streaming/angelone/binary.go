package angelone

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/bjoelf/ttconnect-go/model"
)

// Subscription mode bytes, per SmartStream's binary tick header.
const (
	modeLTP       = 1
	modeQuote     = 2
	modeSnapQuote = 3
)

// Minimum packet length per mode.
const (
	ltpMinBytes       = 51
	quoteMinBytes     = 123
	snapQuoteMinBytes = 347
)

// decodeTick parses one SmartStream binary packet. Packets shorter than
// the LTP minimum are discarded; a token absent from tokenMap is a tick
// for a subscription from a prior session and is dropped.
func decodeTick(data []byte, tokenMap map[string]model.Instrument) (model.Tick, bool) {
	if len(data) < ltpMinBytes {
		return model.Tick{}, false
	}

	mode := data[0]
	token := strings.TrimRight(string(data[2:27]), "\x00")
	token = strings.TrimSpace(token)

	instrument, ok := tokenMap[token]
	if !ok {
		return model.Tick{}, false
	}

	tsMillis := int64(binary.LittleEndian.Uint64(data[35:43]))
	ltpPaise := int64(binary.LittleEndian.Uint64(data[43:51]))

	tick := model.Tick{
		Instrument: instrument,
		LTP:        float64(ltpPaise) / 100.0,
	}
	if tsMillis > 0 {
		ts := time.UnixMilli(tsMillis).UTC()
		tick.Timestamp = &ts
	}

	if mode >= modeQuote && len(data) >= quoteMinBytes {
		volume := int64(binary.LittleEndian.Uint64(data[67:75]))
		tick.Volume = &volume
	}

	if mode >= modeSnapQuote && len(data) >= snapQuoteMinBytes {
		oi := int64(binary.LittleEndian.Uint64(data[131:139]))
		tick.OI = &oi
		tick.Bid, tick.Ask = decodeBest5Top(data[147:347])
	}

	return tick, true
}

// decodeBest5Top parses the 200-byte best-5 depth block into the top bid
// and ask. Each 20-byte record is flag(u16) qty(i64) price(i64) orders(u16);
// flag==0 is a buy-side record, non-zero is sell-side. The first seen
// record on each side is the best (SmartStream emits depth in priority
// order), so the loop stops once both are found.
func decodeBest5Top(block []byte) (bid, ask *float64) {
	for i := 0; i < 10; i++ {
		offset := i * 20
		if offset+20 > len(block) {
			break
		}
		flag := binary.LittleEndian.Uint16(block[offset : offset+2])
		pricePaise := int64(binary.LittleEndian.Uint64(block[offset+10 : offset+18]))
		price := float64(pricePaise) / 100.0
		if price <= 0 {
			continue
		}
		if flag == 0 && bid == nil {
			p := price
			bid = &p
		} else if flag != 0 && ask == nil {
			p := price
			ask = &p
		}
		if bid != nil && ask != nil {
			break
		}
	}
	return bid, ask
}
