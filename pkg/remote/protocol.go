// Package remote runs walk sampling on other processes over nanomsg REQ/REP
// sockets.
//
// A controller opens one REQ socket per worker. Each worker first receives
// an init message carrying the transition table and its seed; afterwards
// every step sends only job lists. Worker i always walks chunk i of a batch,
// so remote dispatch is as reproducible as direct dispatch.
//
// Frames are JSON messages compressed with snappy.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/golang/snappy"
)

// ErrProtocol reports a frame that could not be decoded or an unexpected
// message type.
var ErrProtocol = errors.New("remote protocol error")

// MessageType tags a frame.
type MessageType uint8

const (
	MsgInit MessageType = iota + 1
	MsgReady
	MsgWalk
	MsgPaths
	MsgRelease
	MsgError
)

func (t MessageType) String() string {
	switch t {
	case MsgInit:
		return "init"
	case MsgReady:
		return "ready"
	case MsgWalk:
		return "walk"
	case MsgPaths:
		return "paths"
	case MsgRelease:
		return "release"
	case MsgError:
		return "error"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Message is the envelope of every frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Session   string          `json:"session"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// InitRequest binds a session to a table and a sampler seed.
type InitRequest struct {
	Neighbors [][]int32   `json:"neighbors"`
	CumProbs  [][]float64 `json:"cum_probs"`
	Seed      uint64      `json:"seed"`
}

// ReadyResponse acknowledges an init.
type ReadyResponse struct {
	Nodes int `json:"nodes"`
}

// WalkRequest asks for one walk per job.
type WalkRequest struct {
	Jobs []parallel.Job `json:"jobs"`
}

// PathsResponse answers a WalkRequest, one path per job in order.
type PathsResponse struct {
	Paths [][]int32 `json:"paths"`
}

// ErrorMessage reports a failure on the worker.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage creates a message with the given type and payload.
func NewMessage(msgType MessageType, session string, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Message{
		Type:      msgType,
		Session:   session,
		Timestamp: time.Now().Unix(),
		Data:      raw,
	}, nil
}

// Decode decodes message data into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrProtocol, m.Type, err)
	}
	return nil
}

// Encode marshals and compresses m into a frame.
func Encode(m *Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, b), nil
}

// DecodeFrame reverses Encode.
func DecodeFrame(frame []byte) (*Message, error) {
	b, err := snappy.Decode(nil, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return &m, nil
}

func errorFrame(session, code string, err error) []byte {
	msg, mErr := NewMessage(MsgError, session, ErrorMessage{Code: code, Message: err.Error()})
	if mErr != nil {
		return nil
	}
	frame, _ := Encode(msg)
	return frame
}
