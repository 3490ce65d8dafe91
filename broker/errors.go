package broker

import (
	"fmt"

	"github.com/bjoelf/ttconnect-go/brokererr"
)

func unsupportedFeature(msg string) error {
	return brokererr.NewUnsupportedFeatureError(msg)
}

func unsupportedBroker(brokerID string) error {
	return brokererr.NewUnsupportedFeatureError(fmt.Sprintf("broker: no adapter registered for %q", brokerID))
}
