package zerodha

import (
	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/model"
)

const BrokerID = "zerodha"

// capabilities is this vendor's frozen capability record.
var capabilities = broker.Capabilities{
	BrokerID: BrokerID,
	Segments: map[model.Exchange]bool{
		model.NSE: true, model.BSE: true, model.NFO: true, model.BFO: true, model.CDS: true,
	},
	OrderTypes: map[model.OrderType]bool{
		model.Market: true, model.Limit: true, model.StopLoss: true, model.StopLossM: true,
	},
	ProductTypes: map[model.ProductType]bool{
		model.CNC: true, model.MIS: true, model.NRML: true,
	},
	// Only a pre-obtained access token is supported: a full interactive
	// login flow (API-key request-token exchange) is a credential-
	// acquisition helper, out of scope for this library.
	AuthModes: map[broker.AuthMode]bool{
		broker.AuthManual: true,
	},
}
