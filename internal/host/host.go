// Package host names the services a page or desktop host provides to the
// engine. The native and browser packages implement it.
package host

import (
	"github.com/guidoenr/reflectube/internal/audio"
	"github.com/guidoenr/reflectube/internal/media"
	"github.com/guidoenr/reflectube/internal/render"
)

// Document is the host document: where media candidates come from, where
// ambient displays are injected, and which events the engine listens to.
type Document interface {
	media.Enumerator
	media.ThumbnailProvider
	render.Placement
	render.Mutations
	audio.Interactions
}
