package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct parses a JSON object into a Struct frame.
func ToStruct(data []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode struct: %w", err)
	}
	return s, nil
}

func ToJSON(s *structpb.Struct) ([]byte, error) {
	return protojson.Marshal(s)
}

// ToListValue parses a JSON array.
func ToListValue(data []byte) (*structpb.ListValue, error) {
	l := &structpb.ListValue{}
	if err := protojson.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return l, nil
}

func ListToJSON(l *structpb.ListValue) ([]byte, error) {
	return protojson.Marshal(l)
}
