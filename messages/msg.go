package messages

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Msg is a wire message: one JSON document routed by its type field.
type Msg struct {
	Type Type
	Data []byte
	Time time.Time
}

// DataTo unmarshals the message payload into v.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("unmarshaling message failed").
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	return string(m.Type)
}

// Message is a protocol message that reports its wire type.
type Message interface {
	MsgType() Type
}

// MsgFromMessage marshals a protocol message into a wire message.
func MsgFromMessage(v Message) (Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("marshaling message failed").
			WithTag("msg_type", v.MsgType()).
			Wrap(err)
	}

	return Msg{
		Type: v.MsgType(),
		Data: data,
		Time: time.Now(),
	}, nil
}

// Receiver receives the next message and returns its size in bytes.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns its size in bytes.
type Sender func(Msg) (int, error)

// ResponseSender sends messages back to a connected client.
type ResponseSender interface {
	// Send marshals and sends a protocol message.
	Send(Message)

	// SendMsg sends an already marshaled message.
	SendMsg(Msg)
}

// Receive reads the next message from the connection, peeking only at the
// type field so the payload can be relayed without a reparse.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	var peek struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return Msg{}, len(data), errors.New("malformed message").Wrap(err)
	}

	return Msg{
		Type: peek.Type,
		Data: data,
		Time: time.Now(),
	}, len(data), nil
}

// Send writes the message to the connection.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	if err := websocket.Message.Send(conn, msg.Data); err != nil {
		return 0, err
	}
	return len(msg.Data), nil
}
