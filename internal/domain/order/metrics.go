package order

import (
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

type instruments struct {
	created     metric.Int64Counter
	declined    metric.Int64Counter
	transitions metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) instruments {
	meter := mp.Meter(instrumentationName)
	return instruments{
		created:     counter(meter, "kart.orders.created", "Orders persisted after a successful authorization."),
		declined:    counter(meter, "kart.payments.declined", "Card authorizations declined at checkout."),
		transitions: counter(meter, "kart.orders.transitions", "Order status transitions by outcome."),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return metricnoop.Int64Counter{}
	}
	return c
}
