// Package infra contains technical adapters: zerolog logging, metrics
// sinks, the MQTT publisher, result stores and Sentry monitoring. These
// packages depend only on the interfaces defined in the core packages.
package infra
