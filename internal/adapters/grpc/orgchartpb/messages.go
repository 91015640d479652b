package orgchartpb

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// Struct メッセージで使うフィールド名です。
const (
	FieldID           = "id"
	FieldName         = "name"
	FieldReportsTo    = "reports_to"
	FieldManager      = "manager"
	FieldSubordinates = "subordinates"
	FieldChildren     = "children"
	FieldCreatedAt    = "created_at"
	FieldUpdatedAt    = "updated_at"
	FieldMaxDepth     = "max_depth"
	FieldSnapshot     = "snapshot"
)

// maxSafeInteger は float64 で誤差なく表現できる整数の上限です。
const maxSafeInteger = 1<<53 - 1

// ErrInvalidField はフィールドの型や値が不正な場合のエラーです。
var ErrInvalidField = errors.New("orgchartpb: invalid field")

// NewCreateEmployeeRequest は CreateEmployee のリクエストを組み立てます。reportsTo が nil ならルートとして作成します。
func NewCreateEmployeeRequest(name string, reportsTo *int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldName:      structpb.NewStringValue(name),
		FieldReportsTo: NullableInt64Value(reportsTo),
	}}
}

// NewUpdateEmployeeRequest は UpdateEmployee のリクエストを組み立てます。
// reportsToSet が false の場合 reports_to を送らず、上長は変更されません。
func NewUpdateEmployeeRequest(id int64, name *string, reportsTo *int64, reportsToSet bool) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldID: Int64Value(id),
	}
	if name != nil {
		fields[FieldName] = structpb.NewStringValue(*name)
	}
	if reportsToSet {
		fields[FieldReportsTo] = NullableInt64Value(reportsTo)
	}
	return &structpb.Struct{Fields: fields}
}

// NewSubordinateTreeRequest は GetSubordinateTree のリクエストを組み立てます。
func NewSubordinateTreeRequest(id int64, maxDepth int, snapshot bool) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldID: Int64Value(id),
	}
	if maxDepth > 0 {
		fields[FieldMaxDepth] = structpb.NewNumberValue(float64(maxDepth))
	}
	if snapshot {
		fields[FieldSnapshot] = structpb.NewBoolValue(true)
	}
	return &structpb.Struct{Fields: fields}
}

// Int64Value は ID を number 値に変換します。
func Int64Value(v int64) *structpb.Value {
	return structpb.NewNumberValue(float64(v))
}

// NullableInt64Value は nil を null 値に変換します。
func NullableInt64Value(v *int64) *structpb.Value {
	if v == nil {
		return structpb.NewNullValue()
	}
	return Int64Value(*v)
}

// Int64Field は整数フィールドを読み取ります。present はフィールドが存在し null でない場合に true です。
func Int64Field(s *structpb.Struct, key string) (value int64, present bool, err error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return 0, false, nil
	}
	n, err := toInt64(key, v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// NullableInt64Field は null を許す整数フィールドを読み取ります。
// present はフィールドが送られたかどうかで、null の場合は value が nil になります。
func NullableInt64Field(s *structpb.Struct, key string) (value *int64, present bool, err error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, true, nil
	}
	n, err := toInt64(key, v)
	if err != nil {
		return nil, true, err
	}
	return &n, true, nil
}

// StringField は文字列フィールドを読み取ります。存在しない場合は nil を返します。
func StringField(s *structpb.Struct, key string) (*string, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidField, key)
	}
	str := sv.StringValue
	return &str, nil
}

// BoolField は真偽値フィールドを読み取ります。存在しない場合は false です。
func BoolField(s *structpb.Struct, key string) (bool, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return false, nil
	}
	bv, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a bool", ErrInvalidField, key)
	}
	return bv.BoolValue, nil
}

func toInt64(key string, v *structpb.Value) (int64, error) {
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidField, key)
	}
	f := nv.NumberValue
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidField, key)
	}
	return int64(f), nil
}
