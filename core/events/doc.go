// Package events defines the playback events emitted on the event bus.
//
// Available event types:
//   - PlaybackEvent: a renderer-affecting action taken by the coordinator
package events
