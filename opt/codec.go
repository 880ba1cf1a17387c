package opt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// RemoveHeader prefixes a RemoveCommand line; the candidate JSON follows it.
const RemoveHeader = "Remove: "

// ackLine is the literal no-op message.
const ackLine = "{}"

// MessageKind classifies one incoming line.
type MessageKind int

const (
	// KindAck is the literal "{}": no state change.
	KindAck MessageKind = iota
	// KindRemove drops a pending candidate without recording an observation.
	KindRemove
	// KindObservation resolves a pending candidate with an evaluation outcome.
	KindObservation
)

func (k MessageKind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindRemove:
		return "remove"
	case KindObservation:
		return "observation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is one classified incoming line.
// Candidate is set for KindRemove and KindObservation; Observation only for KindObservation.
type Message struct {
	Kind        MessageKind
	Candidate   Candidate
	Observation Observation
}

// SplitBatch splits a received blob into message lines. The segment after the
// final newline is discarded and each line is trimmed of surrounding whitespace.
func SplitBatch(blob string) []string {
	parts := strings.Split(blob, "\n")
	parts = parts[:len(parts)-1]
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = strings.TrimSpace(p)
	}
	return lines
}

// ClassifyLine recognizes, in order, an ack, a remove command, or an observation
// record. Anything else fails with ErrMalformedMessage.
func ClassifyLine(line string) (Message, error) {
	switch {
	case line == ackLine:
		return Message{Kind: KindAck}, nil

	case strings.HasPrefix(line, RemoveHeader):
		payload := strings.TrimSpace(line[len(RemoveHeader):])
		if !gjson.Valid(payload) || !gjson.Parse(payload).IsObject() {
			return Message{}, fmt.Errorf("%w: remove command payload is not a JSON object", ErrMalformedMessage)
		}
		var c Candidate
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return Message{}, fmt.Errorf("%w: remove command: %v", ErrMalformedMessage, err)
		}
		return Message{Kind: KindRemove, Candidate: c}, nil
	}

	obs, err := decodeObservation([]byte(line))
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Message{Kind: KindObservation, Candidate: obs.Candidate, Observation: obs}, nil
}

// decodeObservation checks the observation record shape, then decodes it.
// Wire lines and ledger lines share this shape.
func decodeObservation(data []byte) (Observation, error) {
	if !gjson.ValidBytes(data) {
		return Observation{}, errors.New("not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Observation{}, errors.New("expected a JSON object")
	}
	if !doc.Get("candidate").IsObject() {
		return Observation{}, errors.New("observation has no candidate object")
	}
	if !doc.Get("contention_failure").IsBool() {
		return Observation{}, errors.New("observation has no boolean contention_failure")
	}
	var obs Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return Observation{}, fmt.Errorf("observation: %w", err)
	}
	return obs, nil
}

// DecodeBatch classifies every line of a blob. The first failure is returned as
// a *MessageError naming the line.
func DecodeBatch(blob string) ([]Message, error) {
	lines := SplitBatch(blob)
	msgs := make([]Message, 0, len(lines))
	for i, line := range lines {
		msg, err := ClassifyLine(line)
		if err != nil {
			return nil, &MessageError{Line: i + 1, Text: line, Err: err}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

type reply struct {
	Candidate Candidate `json:"candidate"`
}

// EncodeReply encodes the coordinator's reply line: {"candidate": ...} plus a newline.
func EncodeReply(c Candidate) ([]byte, error) {
	data, err := json.Marshal(reply{Candidate: c})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeReply parses one reply line produced by EncodeReply.
func DecodeReply(line string) (Candidate, error) {
	var r reply
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return Candidate{}, fmt.Errorf("%w: reply: %v", ErrMalformedMessage, err)
	}
	return r.Candidate, nil
}

// EncodeRemove encodes a RemoveCommand line for c, newline-terminated.
func EncodeRemove(c Candidate) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	line := make([]byte, 0, len(RemoveHeader)+len(data)+1)
	line = append(line, RemoveHeader...)
	line = append(line, data...)
	return append(line, '\n'), nil
}

// EncodeObservation encodes an observation record line, newline-terminated.
func EncodeObservation(obs Observation) ([]byte, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeAck returns the ack line.
func EncodeAck() []byte {
	return []byte(ackLine + "\n")
}
