package websocket

import (
	"context"
	"sync"

	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const dispatchChanSize = 512

// Dispatcher routes received messages toward the handling loop.
type Dispatcher interface {
	// Dispatch enqueues a message. Object moves are held back and coalesced
	// per object, keeping only the latest pose.
	Dispatch(ctx context.Context, msg messages.Msg) error

	// HandleFrame flushes the moves coalesced since the last frame.
	HandleFrame()
}

// Consumer exposes the dispatched messages in handling order.
type Consumer interface {
	Messages() <-chan messages.Msg
}

// Scheduler hands received messages to the handling loop, delaying object
// moves to frame boundaries so a burst of pose updates collapses into one
// move per object and frame.
type Scheduler struct {
	messageChan chan messages.Msg

	mutex  sync.Mutex
	closed bool
	moves  map[uint32]messages.Msg
	order  []uint32
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		messageChan: make(chan messages.Msg, dispatchChanSize),
		moves:       make(map[uint32]messages.Msg),
	}
}

// Dispatch coalesces object moves and queues everything else in arrival
// order. A non-move message first flushes the pending moves so a move is
// never handled after a message that was received later.
func (s *Scheduler) Dispatch(ctx context.Context, msg messages.Msg) error {
	if msg.Type == messages.TypeObjectMove {
		var move struct {
			ObjectID uint32 `json:"object_id"`
		}
		if err := json.Unmarshal(msg.Data, &move); err != nil {
			return errors.New("unmarshaling object move failed").Wrap(err)
		}

		s.mutex.Lock()
		defer s.mutex.Unlock()

		if s.closed {
			return nil
		}

		if _, ok := s.moves[move.ObjectID]; !ok {
			s.order = append(s.order, move.ObjectID)
		}
		s.moves[move.ObjectID] = msg
		return nil
	}

	for _, move := range s.takeMoves() {
		if err := s.send(ctx, move); err != nil {
			return err
		}
	}
	return s.send(ctx, msg)
}

// HandleFrame is registered as a scene frame handler on join. It must never
// block the frame dispatcher: moves that do not fit in the message channel
// stay pending for the next frame.
func (s *Scheduler) HandleFrame() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for len(s.order) != 0 {
		id := s.order[0]

		select {
		case s.messageChan <- s.moves[id]:
			delete(s.moves, id)
			s.order = s.order[1:]

		default:
			return
		}
	}
}

func (s *Scheduler) Messages() <-chan messages.Msg {
	return s.messageChan
}

func (s *Scheduler) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed = true
	s.moves = map[uint32]messages.Msg{}
	s.order = nil

	for len(s.messageChan) != 0 {
		<-s.messageChan
	}
}

func (s *Scheduler) takeMoves() []messages.Msg {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.order) == 0 {
		return nil
	}

	moves := make([]messages.Msg, 0, len(s.order))
	for _, id := range s.order {
		moves = append(moves, s.moves[id])
	}
	s.moves = make(map[uint32]messages.Msg, len(s.order))
	s.order = nil
	return moves
}

func (s *Scheduler) send(ctx context.Context, msg messages.Msg) error {
	select {
	case s.messageChan <- msg:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}
