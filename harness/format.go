package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

const unboundValue = "<unbound>"

// FormatValues renders a typed slice as "[v0, v1, ..., vn-1]".
func FormatValues(data any) (string, error) {
	switch values := data.(type) {
	case []float32:
		return joinValues(values, func(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }), nil
	case []float64:
		return joinValues(values, func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }), nil
	case []float16.Float16:
		return joinValues(values, func(v float16.Float16) string {
			return strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32)
		}), nil
	case []int8:
		return joinValues(values, func(v int8) string { return strconv.FormatInt(int64(v), 10) }), nil
	case []int16:
		return joinValues(values, func(v int16) string { return strconv.FormatInt(int64(v), 10) }), nil
	case []int32:
		return joinValues(values, func(v int32) string { return strconv.FormatInt(int64(v), 10) }), nil
	case []int64:
		return joinValues(values, func(v int64) string { return strconv.FormatInt(v, 10) }), nil
	case []uint8:
		return joinValues(values, func(v uint8) string { return strconv.FormatUint(uint64(v), 10) }), nil
	case []uint16:
		return joinValues(values, func(v uint16) string { return strconv.FormatUint(uint64(v), 10) }), nil
	case []uint32:
		return joinValues(values, func(v uint32) string { return strconv.FormatUint(uint64(v), 10) }), nil
	case []uint64:
		return joinValues(values, func(v uint64) string { return strconv.FormatUint(v, 10) }), nil
	case []bool:
		return joinValues(values, strconv.FormatBool), nil
	default:
		return "", fmt.Errorf("cannot format values of type %T", data)
	}
}

// FormatTensor renders one "<name> = [v0, v1, ...]" line without the newline.
func FormatTensor(name string, data any) (string, error) {
	values, err := FormatValues(data)
	if err != nil {
		return "", fmt.Errorf("format %q: %w", name, err)
	}
	return name + " = " + values, nil
}

func joinValues[T any](values []T, format func(T) string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(format(v))
	}
	b.WriteByte(']')
	return b.String()
}

// writeTensors writes one line per name, in order. Nil slots print as
// unbound; tensors whose data cannot be read print the reason instead.
func writeTensors(s *Section, names []string, tensors []Tensor) {
	for i, name := range names {
		var tensor Tensor
		if i < len(tensors) {
			tensor = tensors[i]
		}
		s.Println(tensorLine(name, tensor))
	}
}

func tensorLine(name string, tensor Tensor) string {
	if tensor == nil {
		return name + " = " + unboundValue
	}
	data, err := tensor.Data()
	if err != nil {
		return fmt.Sprintf("%s = <%v>", name, err)
	}
	line, err := FormatTensor(name, data)
	if err != nil {
		return fmt.Sprintf("%s = <%v>", name, err)
	}
	return line
}
