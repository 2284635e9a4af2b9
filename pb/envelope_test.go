package pb

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestStructRoundTripKeepsMessageIDs(t *testing.T) {
	in := []byte(`{"event":"message:read","ackId":3,"payload":{"messageId":1735689600123}}`)
	s, err := ToStruct(in)
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	out, err := ToJSON(s)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if got := gjson.GetBytes(out, "payload.messageId").Int(); got != 1735689600123 {
		t.Errorf("messageId = %d after round trip (%s)", got, out)
	}
	if got := gjson.GetBytes(out, "event").String(); got != "message:read" {
		t.Errorf("event = %q", got)
	}
}

func TestToStructRejectsArrays(t *testing.T) {
	if _, err := ToStruct([]byte(`[1,2]`)); err == nil {
		t.Error("ToStruct should reject a JSON array")
	}
	l, err := ToListValue([]byte(`[{"id":"a"},{"id":"b"}]`))
	if err != nil {
		t.Fatalf("ToListValue: %v", err)
	}
	if len(l.GetValues()) != 2 {
		t.Errorf("values = %v", l.GetValues())
	}
}
