package websocket

import (
	"context"

	"github.com/aukilabs/garth/messages"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Scenario runs a scripted message exchange over a client connection.
// Received messages that match no filter of the current receive step are
// skipped, so broadcasts and sync clocks from other steps do not have to be
// scripted.
type Scenario struct {
	conn  *websocket.Conn
	steps []scenarioStep
}

func NewScenario(conn *websocket.Conn) *Scenario {
	return &Scenario{conn: conn}
}

// Send appends a step that sends the returned message.
func (s *Scenario) Send(message func() messages.Message) *Scenario {
	s.steps = append(s.steps, scenarioStep{send: message})
	return s
}

// Receive appends a step that waits for the first message matching every
// filter and hands it to handle.
func (s *Scenario) Receive(handle func(messages.Msg) error, filters ...ScenarioFilter) *Scenario {
	s.steps = append(s.steps, scenarioStep{
		handle:  handle,
		filters: filters,
	})
	return s
}

// Run plays the steps in order. It returns the first send, receive or handle
// error, or the context error when the exchange does not complete in time.
func (s *Scenario) Run(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		if step.send != nil {
			msg, err := messages.MsgFromMessage(step.send())
			if err != nil {
				return err
			}
			if _, err := messages.Send(s.conn, msg); err != nil {
				return err
			}
			continue
		}

		for {
			msg, _, err := messages.Receive(s.conn)
			if err != nil {
				return err
			}
			if !step.matches(msg) {
				continue
			}
			if step.handle != nil {
				if err := step.handle(msg); err != nil {
					return err
				}
			}
			break
		}
	}
	return nil
}

type scenarioStep struct {
	send    func() messages.Message
	filters []ScenarioFilter
	handle  func(messages.Msg) error
}

func (s scenarioStep) matches(msg messages.Msg) bool {
	for _, filter := range s.filters {
		if !filter(msg) {
			return false
		}
	}
	return true
}

// ScenarioFilter reports whether a received message belongs to the current
// receive step.
type ScenarioFilter func(messages.Msg) bool

func FilterByType(types ...messages.Type) ScenarioFilter {
	return func(msg messages.Msg) bool {
		for _, t := range types {
			if msg.Type == t {
				return true
			}
		}
		return false
	}
}

func FilterByRequestID(id uint32) ScenarioFilter {
	return func(msg messages.Msg) bool {
		var payload struct {
			RequestID uint32 `json:"request_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return false
		}
		return payload.RequestID == id
	}
}
