package orgchartpb

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestNewUpdateEmployeeRequest_ReportsToTriState(t *testing.T) {
	t.Parallel()

	unchanged := NewUpdateEmployeeRequest(3, nil, nil, false)
	if _, present, err := NullableInt64Field(unchanged, FieldReportsTo); present || err != nil {
		t.Fatalf("expected reports_to to be absent, present=%v err=%v", present, err)
	}

	promote := NewUpdateEmployeeRequest(3, nil, nil, true)
	value, present, err := NullableInt64Field(promote, FieldReportsTo)
	if err != nil || !present || value != nil {
		t.Fatalf("expected explicit null, got value=%v present=%v err=%v", value, present, err)
	}

	parent := int64(1)
	reparent := NewUpdateEmployeeRequest(3, nil, &parent, true)
	value, present, err = NullableInt64Field(reparent, FieldReportsTo)
	if err != nil || !present || value == nil || *value != 1 {
		t.Fatalf("expected reports_to 1, got value=%v present=%v err=%v", value, present, err)
	}

	id, ok, err := Int64Field(reparent, FieldID)
	if err != nil || !ok || id != 3 {
		t.Fatalf("expected id 3, got %d ok=%v err=%v", id, ok, err)
	}
}

func TestInt64Field_RejectsNonIntegers(t *testing.T) {
	t.Parallel()

	cases := map[string]*structpb.Value{
		"fraction": structpb.NewNumberValue(1.5),
		"string":   structpb.NewStringValue("1"),
		"too big":  structpb.NewNumberValue(1 << 60),
	}

	for name, v := range cases {
		v := v
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := &structpb.Struct{Fields: map[string]*structpb.Value{FieldID: v}}
			if _, _, err := Int64Field(s, FieldID); !errors.Is(err, ErrInvalidField) {
				t.Fatalf("expected ErrInvalidField, got %v", err)
			}
		})
	}
}

func TestStringAndBoolFields(t *testing.T) {
	t.Parallel()

	req := NewSubordinateTreeRequest(1, 2, true)
	snapshot, err := BoolField(req, FieldSnapshot)
	if err != nil || !snapshot {
		t.Fatalf("expected snapshot true, got %v (%v)", snapshot, err)
	}
	depth, ok, err := Int64Field(req, FieldMaxDepth)
	if err != nil || !ok || depth != 2 {
		t.Fatalf("expected max_depth 2, got %d ok=%v err=%v", depth, ok, err)
	}

	name, err := StringField(NewCreateEmployeeRequest("Alice", nil), FieldName)
	if err != nil || name == nil || *name != "Alice" {
		t.Fatalf("unexpected name: %v (%v)", name, err)
	}

	missing, err := StringField(&structpb.Struct{}, FieldName)
	if err != nil || missing != nil {
		t.Fatalf("expected missing name to be nil, got %v (%v)", missing, err)
	}

	bad := &structpb.Struct{Fields: map[string]*structpb.Value{FieldSnapshot: structpb.NewStringValue("yes")}}
	if _, err := BoolField(bad, FieldSnapshot); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}
