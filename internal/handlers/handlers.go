package handlers

import (
	"time"

	"media-index/internal/downloads"
	"media-index/internal/index"
	"media-index/internal/startup"
	"media-index/internal/store"
)

// Handlers bundles the dependencies the HTTP layer needs. Every handler is
// thin: parse parameters, call into the subsystem, encode the result.
type Handlers struct {
	store     *store.Store
	index     *index.Index
	downloads *downloads.Manager
	mediaDir  string
	thumbDir  string
	startTime time.Time
}

func New(st *store.Store, ix *index.Index, dl *downloads.Manager, config *startup.Config) *Handlers {
	return &Handlers{
		store:     st,
		index:     ix,
		downloads: dl,
		mediaDir:  config.MediaDir,
		thumbDir:  config.ThumbnailDir,
		startTime: time.Now(),
	}
}
