package rews

import "fmt"

type MessageType byte

// Message type values mirror the websocket opcodes so transports can map
// them without translation tables.
const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
	CloseMessage  MessageType = 8
	PingMessage   MessageType = 9
	PongMessage   MessageType = 10
)

func (t MessageType) Is(other MessageType) bool {
	return t == other
}

// IsData reports whether the message carries application payload, as opposed
// to a control frame.
func (t MessageType) IsData() bool {
	return t.Is(TextMessage) || t.Is(BinaryMessage)
}

func (t MessageType) IsControl() bool {
	return !t.IsData()
}

// Message is an opaque payload travelling over the transport. The client
// never inspects its data; only the type is used to pick the right frame.
type Message interface {
	Type() MessageType
	Data() []byte
	String() string
}

type message struct {
	MessageType MessageType
	MessageData []byte
}

func (m message) Type() MessageType {
	return m.MessageType
}

func (m message) Data() []byte {
	return m.MessageData
}

func (m message) String() string {
	return fmt.Sprintf("Message{type=%d,data=%s}",
		m.MessageType, m.MessageData)
}

func NewMessage(mt MessageType, data []byte) Message {
	return message{MessageType: mt, MessageData: data}
}

func NewTextMessage(data []byte) Message {
	return NewMessage(TextMessage, data)
}

func NewBinaryMessage(data []byte) Message {
	return NewMessage(BinaryMessage, data)
}

func NewPingMessage(data []byte) Message {
	return NewMessage(PingMessage, data)
}

func NewPongMessage(data []byte) Message {
	return NewMessage(PongMessage, data)
}
