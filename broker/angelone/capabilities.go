package angelone

import (
	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/model"
)

const BrokerID = "angelone"

var capabilities = broker.Capabilities{
	BrokerID: BrokerID,
	Segments: map[model.Exchange]bool{
		model.NSE: true, model.BSE: true, model.NFO: true, model.CDS: true, model.MCX: true,
	},
	OrderTypes: map[model.OrderType]bool{
		model.Market: true, model.Limit: true, model.StopLoss: true, model.StopLossM: true,
	},
	ProductTypes: map[model.ProductType]bool{
		model.CNC: true, model.MIS: true, model.NRML: true,
	},
	AuthModes: map[broker.AuthMode]bool{
		broker.AuthManual: true,
		broker.AuthAuto:   true,
	},
}
