package ort

import (
	"os"
	"runtime"
	"testing"
	"unsafe"
)

// resetEnvironmentState resets global state for testing
func resetEnvironmentState() {
	mu.Lock()
	defer mu.Unlock()
	refCount = 0
	ortLib = 0
	ortAPI = nil
	ortEnv = 0
	libPath = ""
	logLevel = LoggingLevelWarning
	clearFunctions()
}

func setupTestEnvironment(tb testing.TB) func() {
	tb.Helper()

	libPath := os.Getenv("ONNXRUNTIME_LIB_PATH")
	if libPath == "" {
		tb.Skip("ONNXRUNTIME_LIB_PATH not set, skipping test")
	}

	resetEnvironmentState()
	if err := SetSharedLibraryPath(libPath); err != nil {
		tb.Fatalf("Failed to set library path: %v", err)
	}
	if err := InitializeEnvironment(); err != nil {
		tb.Fatalf("Failed to initialize environment: %v", err)
	}

	return func() {
		if err := DestroyEnvironment(); err != nil {
			tb.Errorf("Failed to destroy environment: %v", err)
		}
	}
}

type fakeValue struct {
	handle uintptr
}

func (f *fakeValue) Destroy() error          { return nil }
func (f *fakeValue) Type() ValueType         { return ValueTypeTensor }
func (f *fakeValue) ortValueHandle() uintptr { return f.handle }

type unsupportedValue struct{}

func (u *unsupportedValue) Destroy() error  { return nil }
func (u *unsupportedValue) Type() ValueType { return ValueTypeTensor }

type fakeTensorSpec struct {
	elementType TensorElementDataType
	shape       Shape
}

// fakeRuntime stands in for the ONNX Runtime C API. Handles are small
// integers: sessions start at 100, type infos at 1000 (inputs) and 2000
// (outputs), and runtime-allocated output values at 5000.
type fakeRuntime struct {
	inputs      []string
	outputs     []string
	inputTypes  []fakeTensorSpec
	outputTypes []fakeTensorSpec

	// outputData is exposed through GetTensorMutableData for output values.
	outputData [][]float32

	nameBackings     [][]byte
	freedNames       int
	releasedSessions []uintptr
	releasedTypeInfo int
	releasedValues   []uintptr
	createdFromBytes []byte
	createdFromPath  bool
	runCalls         int
	lastRunInputs    int
}

func (f *fakeRuntime) install(tb testing.TB) {
	tb.Helper()
	resetEnvironmentState()
	tb.Cleanup(resetEnvironmentState)

	mu.Lock()
	defer mu.Unlock()

	ortAPI = &OrtApi{}
	ortEnv = 1
	refCount = 1

	createSessionFunc = func(env uintptr, modelPath uintptr, options uintptr, out *uintptr) uintptr {
		f.createdFromPath = true
		*out = 100
		return 0
	}
	createSessionFromArrayFunc = func(env uintptr, modelData uintptr, modelDataLen uintptr, options uintptr, out *uintptr) uintptr {
		// #nosec G103 -- test fake reads the caller's pinned buffer.
		src := unsafe.Slice((*byte)(unsafe.Pointer(modelData)), modelDataLen)
		f.createdFromBytes = append([]byte(nil), src...)
		*out = 100
		return 0
	}
	releaseSessionFunc = func(session uintptr) {
		f.releasedSessions = append(f.releasedSessions, session)
	}
	getAllocatorWithDefaultOptionsFunc = func(out *uintptr) uintptr {
		*out = 7
		return 0
	}
	allocatorFreeFunc = func(allocator uintptr, ptr uintptr) uintptr {
		f.freedNames++
		return 0
	}
	sessionGetInputCountFunc = func(session uintptr, out *uintptr) uintptr {
		*out = uintptr(len(f.inputs))
		return 0
	}
	sessionGetOutputCountFunc = func(session uintptr, out *uintptr) uintptr {
		*out = uintptr(len(f.outputs))
		return 0
	}
	sessionGetInputNameFunc = func(session uintptr, index uintptr, allocator uintptr, out *uintptr) uintptr {
		*out = f.cstring(f.inputs[index])
		return 0
	}
	sessionGetOutputNameFunc = func(session uintptr, index uintptr, allocator uintptr, out *uintptr) uintptr {
		*out = f.cstring(f.outputs[index])
		return 0
	}
	sessionGetInputTypeInfoFunc = func(session uintptr, index uintptr, out *uintptr) uintptr {
		*out = 1000 + index
		return 0
	}
	sessionGetOutputTypeInfoFunc = func(session uintptr, index uintptr, out *uintptr) uintptr {
		*out = 2000 + index
		return 0
	}
	getOnnxTypeFromTypeInfoFunc = func(typeInfo uintptr, out *int32) uintptr {
		*out = int32(ONNXTypeTensor)
		return 0
	}
	castTypeInfoToTensorInfoFunc = func(typeInfo uintptr, out *uintptr) uintptr {
		*out = typeInfo
		return 0
	}
	getTensorTypeAndShapeFunc = func(value uintptr, out *uintptr) uintptr {
		*out = 2000 + (value - 5000)
		return 0
	}
	getTensorElementTypeFunc = func(info uintptr, out *int32) uintptr {
		*out = int32(f.spec(info).elementType)
		return 0
	}
	getDimensionsCountFunc = func(info uintptr, out *uintptr) uintptr {
		*out = uintptr(len(f.spec(info).shape))
		return 0
	}
	getDimensionsFunc = func(info uintptr, dims *int64, dimsLen uintptr) uintptr {
		copy(unsafe.Slice(dims, dimsLen), f.spec(info).shape)
		return 0
	}
	getTensorMutableDataFunc = func(value uintptr, out *uintptr) uintptr {
		data := f.outputData[value-5000]
		*out = uintptr(unsafe.Pointer(unsafe.SliceData(data)))
		return 0
	}
	releaseTypeInfoFunc = func(typeInfo uintptr) {
		f.releasedTypeInfo++
	}
	releaseTensorTypeAndShapeInfoFunc = func(info uintptr) {}
	releaseValueFunc = func(value uintptr) {
		f.releasedValues = append(f.releasedValues, value)
	}
	runSessionFunc = func(session uintptr, runOptions uintptr, inputNames *uintptr, inputValues *uintptr, inputLen uintptr, outputNames *uintptr, outputLen uintptr, outputValues *uintptr) uintptr {
		f.runCalls++
		f.lastRunInputs = int(inputLen)
		outputs := unsafe.Slice(outputValues, outputLen)
		for i := range outputs {
			if outputs[i] == 0 {
				outputs[i] = 5000 + uintptr(i)
			}
		}
		return 0
	}
}

func (f *fakeRuntime) cstring(s string) uintptr {
	backing, ptr := GoToCstring(s)
	f.nameBackings = append(f.nameBackings, backing)
	runtime.KeepAlive(backing)
	return ptr
}

func (f *fakeRuntime) spec(info uintptr) fakeTensorSpec {
	if info >= 2000 {
		return f.outputTypes[info-2000]
	}
	return f.inputTypes[info-1000]
}
