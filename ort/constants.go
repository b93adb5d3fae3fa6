package ort

import "fmt"

const (
	// ORT_API_VERSION is the current ONNX Runtime API version
	ORT_API_VERSION = 22
)

// Session configuration keys understood by AddConfigEntry.
const (
	// SessionOptionsConfigLoadModelFormat selects the serialization format of a
	// model passed as a byte buffer. Values are ModelFormatONNX or ModelFormatORT.
	SessionOptionsConfigLoadModelFormat = "session.load_model_format"
)

// Model serialization formats accepted for SessionOptionsConfigLoadModelFormat.
const (
	ModelFormatONNX = "ONNX"
	ModelFormatORT  = "ORT"
)

// LoggingLevel represents the logging verbosity level
type LoggingLevel int

const (
	LoggingLevelVerbose LoggingLevel = iota
	LoggingLevelInfo
	LoggingLevelWarning
	LoggingLevelError
	LoggingLevelFatal
)

// ErrorCode represents ONNX Runtime error codes
type ErrorCode int

const (
	ErrorCodeOK ErrorCode = iota
	ErrorCodeFail
	ErrorCodeInvalidArgument
	ErrorCodeNoSuchFile
	ErrorCodeNoModel
	ErrorCodeEngineError
	ErrorCodeRuntimeException
	ErrorCodeInvalidProtobuf
	ErrorCodeModelLoaded
	ErrorCodeNotImplemented
	ErrorCodeInvalidGraph
	ErrorCodeEPFail
	ErrorCodeModelLoadCanceled
	ErrorCodeModelRequiresCompilation
)

var errorCodeNames = [...]string{
	"OK", "FAIL", "INVALID_ARGUMENT", "NO_SUCHFILE", "NO_MODEL", "ENGINE_ERROR",
	"RUNTIME_EXCEPTION", "INVALID_PROTOBUF", "MODEL_LOADED", "NOT_IMPLEMENTED",
	"INVALID_GRAPH", "EP_FAIL", "MODEL_LOAD_CANCELED", "MODEL_REQUIRES_COMPILATION",
}

func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// TensorElementDataType represents the data type of tensor elements
type TensorElementDataType int

const (
	TensorElementDataTypeUndefined TensorElementDataType = iota
	TensorElementDataTypeFloat
	TensorElementDataTypeUint8
	TensorElementDataTypeInt8
	TensorElementDataTypeUint16
	TensorElementDataTypeInt16
	TensorElementDataTypeInt32
	TensorElementDataTypeInt64
	TensorElementDataTypeString
	TensorElementDataTypeBool
	TensorElementDataTypeFloat16
	TensorElementDataTypeDouble
	TensorElementDataTypeUint32
	TensorElementDataTypeUint64
	TensorElementDataTypeComplex64
	TensorElementDataTypeComplex128
	TensorElementDataTypeBFloat16
	TensorElementDataTypeFloat8E4M3FN
	TensorElementDataTypeFloat8E4M3FNUZ
	TensorElementDataTypeFloat8E5M2
	TensorElementDataTypeFloat8E5M2FNUZ
	TensorElementDataTypeUint4
	TensorElementDataTypeInt4
)

var tensorElementDataTypeNames = [...]string{
	"undefined", "float32", "uint8", "int8", "uint16", "int16", "int32", "int64",
	"string", "bool", "float16", "float64", "uint32", "uint64", "complex64",
	"complex128", "bfloat16", "float8e4m3fn", "float8e4m3fnuz", "float8e5m2",
	"float8e5m2fnuz", "uint4", "int4",
}

func (t TensorElementDataType) String() string {
	if t >= 0 && int(t) < len(tensorElementDataTypeNames) {
		return tensorElementDataTypeNames[t]
	}
	return fmt.Sprintf("TensorElementDataType(%d)", int(t))
}

// AllocatorType represents the type of memory allocator
type AllocatorType int

const (
	AllocatorTypeInvalid AllocatorType = -1
	AllocatorTypeDevice  AllocatorType = 0
	AllocatorTypeArena   AllocatorType = 1
)

// MemType represents memory types for allocated memory
type MemType int

const (
	MemTypeCPUInput  MemType = -2
	MemTypeCPUOutput MemType = -1
	MemTypeCPU       MemType = MemTypeCPUOutput
	MemTypeDefault   MemType = 0
)

// GraphOptimizationLevel represents the level of graph optimizations
type GraphOptimizationLevel int

const (
	GraphOptimizationLevelDisableAll GraphOptimizationLevel = iota
	GraphOptimizationLevelEnableBasic
	GraphOptimizationLevelEnableExtended
	GraphOptimizationLevelEnableAll
)

// ExecutionMode represents the execution mode for the session
type ExecutionMode int

const (
	ExecutionModeSequential ExecutionMode = iota
	ExecutionModeParallel
)

// ONNXType represents the type of an ONNX value
type ONNXType int

const (
	ONNXTypeUnknown ONNXType = iota
	ONNXTypeTensor
	ONNXTypeSequence
	ONNXTypeMap
	ONNXTypeOpaque
	ONNXTypeSparseMap
	ONNXTypeOptional
)

func (t ONNXType) String() string {
	switch t {
	case ONNXTypeTensor:
		return "tensor"
	case ONNXTypeSequence:
		return "sequence"
	case ONNXTypeMap:
		return "map"
	case ONNXTypeOpaque:
		return "opaque"
	case ONNXTypeSparseMap:
		return "sparse_tensor"
	case ONNXTypeOptional:
		return "optional"
	default:
		return "unknown"
	}
}
