// Package events defines the simulation events emitted on the event bus.
//
// Available event types:
//   - StepEvent: one realised MPC step of an episode
//   - EpisodeEvent: an episode finished, successfully or not
package events
