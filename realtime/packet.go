package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Engine.IO v4 packet types
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message
const (
	sioConnect      byte = '0'
	sioDisconnect   byte = '1'
	sioEvent        byte = '2'
	sioAck          byte = '3'
	sioConnectError byte = '4'
)

var errEmptyPacket = errors.New("empty packet")

// packet is a decoded websocket frame
type packet struct {
	Type       byte // engine.io type
	SocketType byte // socket.io type, only set for engine.io messages
	Namespace  string
	AckID      int // -1 when absent
	Data       []byte
}

// openPayload is sent by the server in the engine.io open packet
type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // ms
	PingTimeout  int    `json:"pingTimeout"`  // ms
	MaxPayload   int    `json:"maxPayload"`
}

// connectError is the payload of a socket.io connect error
type connectError struct {
	Message string `json:"message"`
}

func decodePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errEmptyPacket
	}
	p := packet{Type: frame[0], AckID: -1}
	rest := frame[1:]
	if p.Type != eioMessage {
		p.Data = rest
		return p, nil
	}
	if len(rest) == 0 {
		return packet{}, fmt.Errorf("message packet without socket.io type")
	}
	p.SocketType = rest[0]
	rest = rest[1:]

	if len(rest) > 0 && rest[0] == '/' {
		i := bytes.IndexByte(rest, ',')
		if i < 0 {
			p.Namespace = string(rest)
			return p, nil
		}
		p.Namespace = string(rest[:i])
		rest = rest[i+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(string(rest[:i]))
		if err != nil {
			return packet{}, fmt.Errorf("invalid ack id: %w", err)
		}
		p.AckID = id
		rest = rest[i:]
	}
	p.Data = rest
	return p, nil
}

// encodeConnect builds the socket.io connect packet for the default namespace
func encodeConnect(auth interface{}) ([]byte, error) {
	frame := []byte{eioMessage, sioConnect}
	if auth == nil {
		return frame, nil
	}
	b, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connect auth: %w", err)
	}
	return append(frame, b...), nil
}

// encodeEvent builds `42["name",args...]`
func encodeEvent(name string, args ...interface{}) ([]byte, error) {
	payload := make([]interface{}, 0, len(args)+1)
	payload = append(payload, name)
	payload = append(payload, args...)
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", name, err)
	}
	return append([]byte{eioMessage, sioEvent}, b...), nil
}

func encodeDisconnect() []byte {
	return []byte{eioMessage, sioDisconnect}
}

// decodeEvent splits an event payload into its name and arguments
func decodeEvent(data []byte) (string, []json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("event without name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("failed to decode event name: %w", err)
	}
	return name, parts[1:], nil
}
