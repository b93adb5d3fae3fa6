package ort

// OrtApiBase represents the base API structure
type OrtApiBase struct {
	GetApi           uintptr
	GetVersionString uintptr
}

// OrtApi represents the ONNX Runtime C API function pointer table.
//
// Only the prefix of the table up to AddSessionConfigEntry is declared; the
// order must match onnxruntime_c_api.h exactly because ORT hands us a pointer
// to the C struct. Use tools/gen_ortapi to verify positions against a header.
type OrtApi struct {
	CreateStatus    uintptr // Function 1
	GetErrorCode    uintptr
	GetErrorMessage uintptr

	CreateEnv                 uintptr // Function 4
	CreateEnvWithCustomLogger uintptr
	EnableTelemetryEvents     uintptr
	DisableTelemetryEvents    uintptr

	CreateSession          uintptr // Function 8
	CreateSessionFromArray uintptr
	Run                    uintptr

	CreateSessionOptions             uintptr // Function 11
	SetOptimizedModelFilePath        uintptr
	CloneSessionOptions              uintptr
	SetSessionExecutionMode          uintptr
	EnableProfiling                  uintptr
	DisableProfiling                 uintptr
	EnableMemPattern                 uintptr
	DisableMemPattern                uintptr
	EnableCpuMemArena                uintptr
	DisableCpuMemArena               uintptr
	SetSessionLogId                  uintptr
	SetSessionLogVerbosityLevel      uintptr
	SetSessionLogSeverityLevel       uintptr
	SetSessionGraphOptimizationLevel uintptr
	SetIntraOpNumThreads             uintptr
	SetInterOpNumThreads             uintptr

	CreateCustomOpDomain     uintptr // Function 27
	CustomOpDomain_Add       uintptr
	AddCustomOpDomain        uintptr
	RegisterCustomOpsLibrary uintptr

	SessionGetInputCount                     uintptr // Function 31
	SessionGetOutputCount                    uintptr
	SessionGetOverridableInitializerCount    uintptr
	SessionGetInputTypeInfo                  uintptr
	SessionGetOutputTypeInfo                 uintptr
	SessionGetOverridableInitializerTypeInfo uintptr
	SessionGetInputName                      uintptr
	SessionGetOutputName                     uintptr
	SessionGetOverridableInitializerName     uintptr

	CreateRunOptions                  uintptr // Function 40
	RunOptionsSetRunLogVerbosityLevel uintptr
	RunOptionsSetRunLogSeverityLevel  uintptr
	RunOptionsSetRunTag               uintptr
	RunOptionsGetRunLogVerbosityLevel uintptr
	RunOptionsGetRunLogSeverityLevel  uintptr
	RunOptionsGetRunTag               uintptr
	RunOptionsSetTerminate            uintptr
	RunOptionsUnsetTerminate          uintptr

	CreateTensorAsOrtValue         uintptr // Function 49
	CreateTensorWithDataAsOrtValue uintptr
	IsTensor                       uintptr
	GetTensorMutableData           uintptr

	FillStringTensor          uintptr // Function 53
	GetStringTensorDataLength uintptr
	GetStringTensorContent    uintptr

	CastTypeInfoToTensorInfo     uintptr // Function 56
	GetOnnxTypeFromTypeInfo      uintptr
	CreateTensorTypeAndShapeInfo uintptr
	SetTensorElementType         uintptr

	SetDimensions              uintptr // Function 60
	GetTensorElementType       uintptr
	GetDimensionsCount         uintptr
	GetDimensions              uintptr
	GetSymbolicDimensions      uintptr
	GetTensorShapeElementCount uintptr
	GetTensorTypeAndShape      uintptr
	GetTypeInfo                uintptr
	GetValueType               uintptr
	CreateMemoryInfo           uintptr // Function 69
	CreateCpuMemoryInfo        uintptr
	CompareMemoryInfo          uintptr
	MemoryInfoGetName          uintptr
	MemoryInfoGetId            uintptr
	MemoryInfoGetMemType       uintptr
	MemoryInfoGetType          uintptr

	AllocatorAlloc                 uintptr // Function 76
	AllocatorFree                  uintptr
	AllocatorGetInfo               uintptr
	GetAllocatorWithDefaultOptions uintptr
	AddFreeDimensionOverride       uintptr
	GetValue                       uintptr
	GetValueCount                  uintptr
	CreateValue                    uintptr
	CreateOpaqueValue              uintptr
	GetOpaqueValue                 uintptr

	KernelInfoGetAttribute_float  uintptr // Function 86
	KernelInfoGetAttribute_int64  uintptr
	KernelInfoGetAttribute_string uintptr
	KernelContext_GetInputCount   uintptr
	KernelContext_GetOutputCount  uintptr
	KernelContext_GetInput        uintptr
	KernelContext_GetOutput       uintptr

	ReleaseEnv                    uintptr // Function 93
	ReleaseStatus                 uintptr
	ReleaseMemoryInfo             uintptr
	ReleaseSession                uintptr
	ReleaseValue                  uintptr
	ReleaseRunOptions             uintptr
	ReleaseTypeInfo               uintptr
	ReleaseTensorTypeAndShapeInfo uintptr
	ReleaseSessionOptions         uintptr
	ReleaseCustomOpDomain         uintptr

	GetDenotationFromTypeInfo      uintptr // Function 103
	CastTypeInfoToMapTypeInfo      uintptr
	CastTypeInfoToSequenceTypeInfo uintptr
	GetMapKeyType                  uintptr
	GetMapValueType                uintptr
	GetSequenceElementType         uintptr
	ReleaseMapTypeInfo             uintptr
	ReleaseSequenceTypeInfo        uintptr

	SessionEndProfiling                   uintptr // Function 111
	SessionGetModelMetadata               uintptr
	ModelMetadataGetProducerName          uintptr
	ModelMetadataGetGraphName             uintptr
	ModelMetadataGetDomain                uintptr
	ModelMetadataGetDescription           uintptr
	ModelMetadataLookupCustomMetadataMap  uintptr
	ModelMetadataGetVersion               uintptr
	ReleaseModelMetadata                  uintptr
	CreateEnvWithGlobalThreadPools        uintptr
	DisablePerSessionThreads              uintptr
	CreateThreadingOptions                uintptr
	ReleaseThreadingOptions               uintptr
	ModelMetadataGetCustomMetadataMapKeys uintptr
	AddFreeDimensionOverrideByName        uintptr
	GetAvailableProviders                 uintptr
	ReleaseAvailableProviders             uintptr
	GetStringTensorElementLength          uintptr
	GetStringTensorElement                uintptr
	FillStringTensorElement               uintptr
	AddSessionConfigEntry                 uintptr // Function 131

	// Later entries are not used by this package.
}

// Value represents an ONNX Runtime value (tensor, sequence, map, etc.)
type Value interface {
	// Destroy releases the underlying resources
	Destroy() error
	// Type returns the type of the value
	Type() ValueType
}

// valueHandleProvider is implemented by values backed by an OrtValue.
type valueHandleProvider interface {
	ortValueHandle() uintptr
}

// ValueType represents the type of an ONNX Runtime value
type ValueType int

const (
	ValueTypeUnknown ValueType = iota
	ValueTypeTensor
	ValueTypeSequence
	ValueTypeMap
	ValueTypeOpaque
	ValueTypeOptional
)

// Shape represents the shape of a tensor
type Shape []int64

// NewShape creates a new shape from dimensions
func NewShape(dims ...int64) Shape {
	return Shape(dims)
}

// SessionOptions represents options for creating a session
type SessionOptions struct {
	handle                 uintptr // Pointer to OrtSessionOptions
	graphOptimizationLevel GraphOptimizationLevel
	intraOpNumThreads      int
	interOpNumThreads      int
	configEntries          map[string]string
}

// TypeInfo describes the declared type of a session input or output.
// It is a Go-side copy; the OrtTypeInfo it was read from is already released.
type TypeInfo struct {
	ONNXType ONNXType
	// Tensor is nil unless ONNXType is ONNXTypeTensor.
	Tensor *TensorTypeAndShapeInfo
}

// TensorTypeAndShapeInfo represents tensor type and shape information.
// Symbolic dimensions are reported as -1.
type TensorTypeAndShapeInfo struct {
	ElementType TensorElementDataType
	Shape       Shape
}
