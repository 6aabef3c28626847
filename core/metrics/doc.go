// Package metrics defines the observability interfaces of the simulation.
// Sinks like the Prometheus, InfluxDB and MQTT sinks in infra/metrics record
// scenario scores and, optionally, individual MPC steps. Several sinks are
// combined with MultiSink; NewMetricsSink returns one automatically when more
// than one sink is configured.
package metrics
