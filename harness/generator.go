package harness

import (
	"fmt"
	"math/rand/v2"

	"github.com/x448/float16"

	"github.com/amikos-tech/onnx-fuzz/ort"
)

// InputGenerator produces count values of elemType from seed. The result must
// be a typed slice accepted by Engine.NewTensor, and identical arguments must
// produce identical values.
type InputGenerator func(elemType ort.TensorElementDataType, count int, seed int64) (any, error)

// pcgStream decorrelates the second PCG word from the seed.
const pcgStream = 0x9e3779b97f4a7c15

// Generate returns count pseudorandom values of elemType derived from seed.
// Floating point values are uniform in [-1, 1), integers cover the full width
// of the type and bools are a fair coin. Unsupported element types return an
// *UnsupportedTypeError.
func Generate(elemType ort.TensorElementDataType, count int, seed int64) (any, error) {
	if count < 0 {
		return nil, fmt.Errorf("element count must be >= 0, got %d", count)
	}

	r := newRand(seed)
	switch elemType {
	case ort.TensorElementDataTypeFloat:
		return generateValues(r, count, func(r *rand.Rand) float32 { return r.Float32()*2 - 1 }), nil
	case ort.TensorElementDataTypeDouble:
		return generateValues(r, count, func(r *rand.Rand) float64 { return r.Float64()*2 - 1 }), nil
	case ort.TensorElementDataTypeFloat16:
		// k/1024 for k in [-1024, 1024) is exact in binary16.
		return generateValues(r, count, func(r *rand.Rand) float16.Float16 {
			return float16.Fromfloat32(float32(r.IntN(2048)-1024) / 1024)
		}), nil
	case ort.TensorElementDataTypeInt8:
		return generateValues(r, count, func(r *rand.Rand) int8 { return int8(r.Uint32()) }), nil // #nosec G115
	case ort.TensorElementDataTypeInt16:
		return generateValues(r, count, func(r *rand.Rand) int16 { return int16(r.Uint32()) }), nil // #nosec G115
	case ort.TensorElementDataTypeInt32:
		return generateValues(r, count, func(r *rand.Rand) int32 { return int32(r.Uint32()) }), nil // #nosec G115
	case ort.TensorElementDataTypeInt64:
		return generateValues(r, count, func(r *rand.Rand) int64 { return int64(r.Uint64()) }), nil // #nosec G115
	case ort.TensorElementDataTypeUint8:
		return generateValues(r, count, func(r *rand.Rand) uint8 { return uint8(r.Uint32()) }), nil // #nosec G115
	case ort.TensorElementDataTypeUint16:
		return generateValues(r, count, func(r *rand.Rand) uint16 { return uint16(r.Uint32()) }), nil // #nosec G115
	case ort.TensorElementDataTypeUint32:
		return generateValues(r, count, (*rand.Rand).Uint32), nil
	case ort.TensorElementDataTypeUint64:
		return generateValues(r, count, (*rand.Rand).Uint64), nil
	case ort.TensorElementDataTypeBool:
		return generateValues(r, count, func(r *rand.Rand) bool { return r.Uint32()&1 == 1 }), nil
	default:
		return nil, &UnsupportedTypeError{ElementType: elemType}
	}
}

// Supported reports whether Generate has an arm for elemType.
func Supported(elemType ort.TensorElementDataType) bool {
	switch elemType {
	case ort.TensorElementDataTypeFloat,
		ort.TensorElementDataTypeDouble,
		ort.TensorElementDataTypeFloat16,
		ort.TensorElementDataTypeInt8,
		ort.TensorElementDataTypeInt16,
		ort.TensorElementDataTypeInt32,
		ort.TensorElementDataTypeInt64,
		ort.TensorElementDataTypeUint8,
		ort.TensorElementDataTypeUint16,
		ort.TensorElementDataTypeUint32,
		ort.TensorElementDataTypeUint64,
		ort.TensorElementDataTypeBool:
		return true
	default:
		return false
	}
}

func newRand(seed int64) *rand.Rand {
	s := uint64(seed) // #nosec G115 -- bit pattern reuse is intended.
	return rand.New(rand.NewPCG(s, s^pcgStream))
}

func generateValues[T any](r *rand.Rand, count int, next func(*rand.Rand) T) []T {
	values := make([]T, count)
	for i := range values {
		values[i] = next(r)
	}
	return values
}
