package models

import (
	"sync"
	"time"

	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// Scene is a shared editing space holding participants and the objects they
// placed.
type Scene struct {
	ID   uint32
	UUID string

	participantIDs   SequentialIDGenerator
	participantMutex sync.RWMutex
	participants     map[uint32]*Participant

	objectIDs   SequentialIDGenerator
	objectMutex sync.RWMutex
	objects     map[uint32]*SceneObject

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewScene(id uint32, frameDuration time.Duration) *Scene {
	return &Scene{
		ID:             id,
		UUID:           uuid.New().String(),
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		participants:   make(map[uint32]*Participant),
		objects:        make(map[uint32]*SceneObject),
		moduleStates:   make(map[string]any),
		frameHandlers:  make(map[uint32]func()),
	}
}

func (s *Scene) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

func (s *Scene) NewParticipantID() uint32 {
	return s.participantIDs.New()
}

func (s *Scene) AddParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	s.participants[p.ID] = p
}

func (s *Scene) RemoveParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	delete(s.participants, p.ID)
}

func (s *Scene) GetParticipants() []*Participant {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, p)
	}
	return participants
}

func (s *Scene) ParticipantIDs() []uint32 {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	ids := make([]uint32, 0, len(s.participants))
	for id := range s.participants {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scene) ParticipantCount() int {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	return len(s.participants)
}

func (s *Scene) NewObjectID() uint32 {
	return s.objectIDs.New()
}

func (s *Scene) AddObject(o *SceneObject) {
	s.objectMutex.Lock()
	defer s.objectMutex.Unlock()

	s.objects[o.ID] = o
	instrumentIncreaseObjectGauge()
}

func (s *Scene) RemoveObject(o *SceneObject) {
	s.objectMutex.Lock()
	defer s.objectMutex.Unlock()

	if _, ok := s.objects[o.ID]; !ok {
		return
	}
	delete(s.objects, o.ID)
	instrumentDecreaseObjectGauge()
}

func (s *Scene) ObjectByID(id uint32) (*SceneObject, bool) {
	s.objectMutex.RLock()
	defer s.objectMutex.RUnlock()

	o, ok := s.objects[id]
	return o, ok
}

func (s *Scene) Objects() []*SceneObject {
	s.objectMutex.RLock()
	defer s.objectMutex.RUnlock()

	objects := make([]*SceneObject, 0, len(s.objects))
	for _, o := range s.objects {
		objects = append(objects, o)
	}
	return objects
}

func (s *Scene) ObjectCount() int {
	s.objectMutex.RLock()
	defer s.objectMutex.RUnlock()

	return len(s.objects)
}

// ReplaceObjects swaps the whole object set, used when a snapshot is
// restored.
func (s *Scene) ReplaceObjects(objects []*SceneObject) {
	s.objectMutex.Lock()
	defer s.objectMutex.Unlock()

	for range s.objects {
		instrumentDecreaseObjectGauge()
	}

	s.objects = make(map[uint32]*SceneObject, len(objects))
	for _, o := range objects {
		s.objects[o.ID] = o
		instrumentIncreaseObjectGauge()
	}
}

// DistinctAssetKeys lists the distinct assets referenced by the scene's
// objects.
func (s *Scene) DistinctAssetKeys() []AssetKey {
	s.objectMutex.RLock()
	defer s.objectMutex.RUnlock()

	seen := make(map[AssetKey]struct{}, len(s.objects))
	keys := make([]AssetKey, 0, len(s.objects))
	for _, o := range s.objects {
		if _, ok := seen[o.AssetKey]; ok {
			continue
		}
		seen[o.AssetKey] = struct{}{}
		keys = append(keys, o.AssetKey)
	}
	return keys
}

// Broadcast sends the message to every participant but the sender. A nil
// sender reaches everyone.
func (s *Scene) Broadcast(sender *Participant, message messages.Message) {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	msg, err := messages.MsgFromMessage(message)
	if err != nil {
		logs.WithTag("msg_type", message.MsgType()).Debug(err)
		return
	}

	for _, p := range s.participants {
		if p == sender {
			continue
		}
		p.Responder.SendMsg(msg)
	}
}

func (s *Scene) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Scene) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

func (s *Scene) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

func (s *Scene) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h()
				}
				s.frameMutex.RUnlock()
			}
		}
	})
}

// SceneStore holds the live scenes, keyed by their global id.
type SceneStore struct {
	// The server id advertised in global scene ids.
	ServerID string

	initOnce sync.Once
	mutex    sync.RWMutex
	scenes   map[string]*Scene
	ids      SequentialIDGenerator
}

func (s *SceneStore) init() {
	s.scenes = map[string]*Scene{}

	if s.ServerID == "" {
		s.ServerID = "garth"
	}
}

func (s *SceneStore) NewID() uint32 {
	return s.ids.New()
}

func (s *SceneStore) Add(scene *Scene) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.scenes[s.GlobalID(scene.ID)] = scene

	instrumentIncreaseSceneGauge()
	instrumentCountScene()
}

func (s *SceneStore) Remove(scene *Scene) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.scenes, s.GlobalID(scene.ID))
	scene.Close()

	s.ids.Reuse(scene.ID)

	instrumentDecreaseSceneGauge()
}

func (s *SceneStore) GetByGlobalID(v string) (*Scene, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	scene, ok := s.scenes[v]
	return scene, ok
}

func (s *SceneStore) GlobalID(sceneID uint32) string {
	s.initOnce.Do(s.init)

	return GlobalSceneID(s.ServerID, sceneID)
}

func (s *SceneStore) Count() int {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.scenes)
}
