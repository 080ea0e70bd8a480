package simlink

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Field describes one scalar the physics engine streams back in a state frame.
type Field struct {
	Name string
	Unit string
	Size int
}

func vectorFields(name, unit string) []Field {
	return []Field{
		{Name: name + " X", Unit: unit, Size: 8},
		{Name: name + " Y", Unit: unit, Size: 8},
		{Name: name + " Z", Unit: unit, Size: 8},
	}
}

// StateFields is the ordered field list of the vehicle state definition.
// The order determines the byte layout of a MsgVehicleState payload.
var StateFields = func() []Field {
	var out []Field
	for _, v := range []struct{ name, unit string }{
		{"POSITION", "meters"},
		{"ORIENTATION", "degrees"},
		{"FORWARD", "unit"},
		{"UP", "unit"},
		{"RIGHT", "unit"},
		{"LOCAL VELOCITY", "meters/second"},
		{"MOUNT REAR LEFT", "meters"},
		{"MOUNT REAR RIGHT", "meters"},
		{"MOUNT FRONT LEFT", "meters"},
		{"MOUNT FRONT RIGHT", "meters"},
	} {
		out = append(out, vectorFields(v.name, v.unit)...)
	}
	return out
}()

// FieldRegistry holds the allowlist of state fields a link may define.
type FieldRegistry struct {
	fields map[string]Field
}

// NewFieldRegistry creates a registry with every field of StateFields.
func NewFieldRegistry() *FieldRegistry {
	r := &FieldRegistry{fields: make(map[string]Field, len(StateFields))}
	for _, f := range StateFields {
		r.fields[f.Name] = f
	}
	return r
}

// Get returns the field with the given name, if it exists.
func (r *FieldRegistry) Get(name string) (Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Validate checks if a field name is in the allowlist.
func (r *FieldRegistry) Validate(name string) error {
	if _, ok := r.fields[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

func decodeFloat64(data []byte) (float64, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("float64 requires 8 bytes, got %d", len(data))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data[:8])), nil
}
