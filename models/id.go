package models

import (
	"fmt"
	"sync"
)

// A sequential id generator. Freed ids are handed out again before new ones
// are minted, keeping the id space compact over long editing sessions.
type SequentialIDGenerator struct {
	mutex       sync.Mutex
	currentID   uint32
	reusableIDs map[uint32]struct{}
}

// New returns a sequential id.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for id := range g.reusableIDs {
		delete(g.reusableIDs, id)
		return id
	}

	g.currentID++
	return g.currentID
}

// Reuse marks the given id as reusable. Reusable ids are returned in
// priority when using New.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.reusableIDs == nil {
		g.reusableIDs = make(map[uint32]struct{})
	}

	g.reusableIDs[id] = struct{}{}
}

// GlobalSceneID is the scene id shared with clients. It scopes the scene's
// sequential id to the server that owns it.
func GlobalSceneID(serverID string, sceneID uint32) string {
	return fmt.Sprintf("%sx%x", serverID, sceneID)
}
