// Package playback drives the renderer from the schedule. A Coordinator
// re-reads the store on every tick and issues at most one renderer-affecting
// command per tick.
package playback

import (
	"context"
	"fmt"
)

// PlayRequest asks the renderer to start playing a media file.
type PlayRequest struct {
	MediaPath string
	SourceID  string
	// Scene is the scene to place the source in; empty uses the renderer's
	// configured scene.
	Scene string
	// Layer is the optional z-order index of the source.
	Layer *int
}

// PlayResult is returned by a successful Play.
type PlayResult struct {
	Handle string
}

// StopRequest asks the renderer to stop a source. Clear tears the source
// down instead of only hiding it.
type StopRequest struct {
	SourceID string
	Scene    string
	Clear    bool
}

// Renderer executes playback commands. Any call may fail.
type Renderer interface {
	Play(ctx context.Context, req PlayRequest) (PlayResult, error)
	Stop(ctx context.Context, req StopRequest) error
	SetScene(ctx context.Context, scene string) error
}

// SourceID derives the renderer source identifier for an entry. Repeated
// schedulings of the same media get distinct identifiers.
func SourceID(name, entryID string) string {
	return fmt.Sprintf("Scheduler: %s [%s]", name, entryID)
}
