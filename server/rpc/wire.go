package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/compute"
)

// UpdateRequest is the UpdateFlow request document.
type UpdateRequest struct {
	Entry flowreprog.Entry `json:"entry"`
}

// UpdateResult is the UpdateFlow response document.
type UpdateResult struct {
	Name string `json:"name" yaml:"name"`
	// Pending is the request tracked for Name once the update has been
	// accepted. It is nil when no reprogramming is in flight: a fresh
	// install, a no-op or a fallback.
	Pending *compute.Request `json:"pending,omitempty" yaml:"pending,omitempty"`
}

// FlowInfo describes one configured flow entry.
type FlowInfo struct {
	Entry    flowreprog.Entry    `json:"entry" yaml:"entry"`
	Status   flowreprog.Status   `json:"status" yaml:"status"`
	Counters flowreprog.Counters `json:"counters" yaml:"counters"`
	// RejectedReason is set only when Status is rejected.
	RejectedReason *flowreprog.RejectedReason `json:"rejected_reason,omitempty" yaml:"rejected_reason,omitempty"`
	// Phase is set while the flow is being reprogrammed.
	Phase compute.Phase `json:"phase,omitempty" yaml:"phase,omitempty"`
}

// ClassifyRequest asks which programmed entry forwards Frame when it
// arrives on InputIntf.
type ClassifyRequest struct {
	InputIntf string `json:"input_intf"`
	Frame     []byte `json:"frame"`
}

// ClassifyResult is the Classify response document.
type ClassifyResult struct {
	Matched bool              `json:"matched" yaml:"matched"`
	Entry   *flowreprog.Entry `json:"entry,omitempty" yaml:"entry,omitempty"`
}

// Encode renders v, which must marshal to a JSON object, as a Struct.
// Numbers travel as doubles, so integers above 2^53 lose precision.
func Encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// Decode is the inverse of Encode.
func Decode(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// EncodeList renders items as a ListValue of Structs.
func EncodeList[T any](items []T) (*structpb.ListValue, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode []%T: %w", *new(T), err)
	}
	l := new(structpb.ListValue)
	if err := protojson.Unmarshal(b, l); err != nil {
		return nil, fmt.Errorf("encode []%T: %w", *new(T), err)
	}
	return l, nil
}

// DecodeList is the inverse of EncodeList.
func DecodeList[T any](l *structpb.ListValue) ([]T, error) {
	b, err := protojson.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("decode []%T: %w", *new(T), err)
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode []%T: %w", *new(T), err)
	}
	return items, nil
}
