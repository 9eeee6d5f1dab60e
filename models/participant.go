package models

import (
	"github.com/aukilabs/garth/messages"
)

// A scene participant. The object id set is owned by the participant's
// connection goroutine and needs no locking.
type Participant struct {
	ID        uint32
	Responder messages.ResponseSender

	objectIDs map[uint32]struct{}
}

func (p *Participant) AddObject(o *SceneObject) {
	if p.objectIDs == nil {
		p.objectIDs = make(map[uint32]struct{})
	}
	p.objectIDs[o.ID] = struct{}{}
}

func (p *Participant) RemoveObject(o *SceneObject) {
	delete(p.objectIDs, o.ID)
}

func (p *Participant) ObjectIDs() map[uint32]struct{} {
	return p.objectIDs
}
