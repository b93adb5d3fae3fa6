package ort

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	mu sync.Mutex
	// ortCallMu is held for reading by every call into ORT that uses a handle,
	// and for writing while handles are released. Lock order is ortCallMu -> mu.
	ortCallMu sync.RWMutex

	refCount int
	ortLib   uintptr
	ortAPI   *OrtApi
	ortEnv   uintptr
	libPath  string
	logLevel = LoggingLevelWarning
)

// Function bindings resolved from the OrtApi table on InitializeEnvironment.
// Tests replace individual entries to fake the runtime.
var (
	getVersionStringFunc func() uintptr
	getErrorMessageFunc  func(status uintptr) uintptr
	getErrorCodeFunc     func(status uintptr) int32
	releaseStatusFunc    func(status uintptr)

	createEnvFunc              func(level LoggingLevel, logID uintptr, out *uintptr) uintptr
	releaseEnvFunc             func(env uintptr)
	enableTelemetryEventsFunc  func(env uintptr) uintptr
	disableTelemetryEventsFunc func(env uintptr) uintptr

	createMemoryInfoFunc               func(name uintptr, allocatorType AllocatorType, deviceID int32, memType MemType, out *uintptr) uintptr
	releaseMemoryInfoFunc              func(memInfo uintptr)
	createTensorWithDataAsOrtValueFunc func(memInfo uintptr, data uintptr, dataLen uintptr, shape *int64, shapeLen uintptr, elementType TensorElementDataType, out *uintptr) uintptr
	releaseValueFunc                   func(value uintptr)
	getTensorMutableDataFunc           func(value uintptr, out *uintptr) uintptr
	getTensorTypeAndShapeFunc          func(value uintptr, out *uintptr) uintptr

	getOnnxTypeFromTypeInfoFunc       func(typeInfo uintptr, out *int32) uintptr
	castTypeInfoToTensorInfoFunc      func(typeInfo uintptr, out *uintptr) uintptr
	getTensorElementTypeFunc          func(info uintptr, out *int32) uintptr
	getDimensionsCountFunc            func(info uintptr, out *uintptr) uintptr
	getDimensionsFunc                 func(info uintptr, dims *int64, dimsLen uintptr) uintptr
	releaseTypeInfoFunc               func(typeInfo uintptr)
	releaseTensorTypeAndShapeInfoFunc func(info uintptr)

	getAllocatorWithDefaultOptionsFunc func(out *uintptr) uintptr
	allocatorAllocFunc                 func(allocator uintptr, size uintptr, out *uintptr) uintptr
	allocatorFreeFunc                  func(allocator uintptr, ptr uintptr) uintptr

	createSessionOptionsFunc             func(out *uintptr) uintptr
	releaseSessionOptionsFunc            func(options uintptr)
	setIntraOpNumThreadsFunc             func(options uintptr, threads int32) uintptr
	setInterOpNumThreadsFunc             func(options uintptr, threads int32) uintptr
	setSessionGraphOptimizationLevelFunc func(options uintptr, level GraphOptimizationLevel) uintptr
	addSessionConfigEntryFunc            func(options uintptr, key uintptr, value uintptr) uintptr

	createSessionFunc            func(env uintptr, modelPath uintptr, options uintptr, out *uintptr) uintptr
	createSessionFromArrayFunc   func(env uintptr, modelData uintptr, modelDataLen uintptr, options uintptr, out *uintptr) uintptr
	runSessionFunc               func(session uintptr, runOptions uintptr, inputNames *uintptr, inputValues *uintptr, inputLen uintptr, outputNames *uintptr, outputLen uintptr, outputValues *uintptr) uintptr
	releaseSessionFunc           func(session uintptr)
	sessionGetInputCountFunc     func(session uintptr, out *uintptr) uintptr
	sessionGetOutputCountFunc    func(session uintptr, out *uintptr) uintptr
	sessionGetInputNameFunc      func(session uintptr, index uintptr, allocator uintptr, out *uintptr) uintptr
	sessionGetOutputNameFunc     func(session uintptr, index uintptr, allocator uintptr, out *uintptr) uintptr
	sessionGetInputTypeInfoFunc  func(session uintptr, index uintptr, out *uintptr) uintptr
	sessionGetOutputTypeInfoFunc func(session uintptr, index uintptr, out *uintptr) uintptr
)

// InitializeEnvironment loads the ONNX Runtime shared library, resolves the C
// API for ORT_API_VERSION and creates the process-wide OrtEnv.
//
// Calls are reference counted: every successful InitializeEnvironment must be
// paired with DestroyEnvironment.
func InitializeEnvironment() error {
	mu.Lock()
	defer mu.Unlock()

	if refCount > 0 {
		refCount++
		return nil
	}

	if libPath == "" {
		return fmt.Errorf("library path not set, call SetSharedLibraryPath first")
	}

	lib, err := openLibrary(libPath)
	if err != nil {
		return fmt.Errorf("failed to load ONNX Runtime library %q: %w", libPath, err)
	}

	api, versionFn, err := resolveAPI(lib)
	if err != nil {
		_ = closeLibrary(lib)
		return err
	}

	bindFunctions(api)
	getVersionStringFunc = versionFn

	logIDBytes, logIDPtr := GoToCstring("onnx-fuzz")
	var env uintptr
	status := createEnvFunc(logLevel, logIDPtr, &env)
	runtime.KeepAlive(logIDBytes)
	if status != 0 {
		errMsg := getErrorMessage(status)
		releaseStatus(status)
		clearFunctions()
		_ = closeLibrary(lib)
		return fmt.Errorf("failed to create ONNX Runtime environment: %s", errMsg)
	}

	ortLib = lib
	ortAPI = api
	ortEnv = env
	refCount = 1
	return nil
}

func resolveAPI(lib uintptr) (*OrtApi, func() uintptr, error) {
	sym, err := lookupSymbol(lib, "OrtGetApiBase")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve OrtGetApiBase: %w", err)
	}
	if sym == 0 {
		return nil, nil, errors.New("failed to resolve OrtGetApiBase: symbol not found")
	}

	var getAPIBase func() uintptr
	purego.RegisterFunc(&getAPIBase, sym)
	basePtr := getAPIBase()
	if basePtr == 0 {
		return nil, nil, fmt.Errorf("OrtGetApiBase returned NULL")
	}
	// #nosec G103 -- OrtApiBase is a static C struct owned by the runtime library.
	base := (*OrtApiBase)(unsafe.Pointer(basePtr))

	var getAPI func(version uint32) uintptr
	purego.RegisterFunc(&getAPI, base.GetApi)
	var getVersion func() uintptr
	purego.RegisterFunc(&getVersion, base.GetVersionString)

	apiPtr := getAPI(ORT_API_VERSION)
	if apiPtr == 0 {
		return nil, nil, fmt.Errorf("ONNX Runtime %s does not support API version %d", CstringToGo(getVersion()), ORT_API_VERSION)
	}
	// #nosec G103 -- OrtApi is a static C function table owned by the runtime library.
	return (*OrtApi)(unsafe.Pointer(apiPtr)), getVersion, nil
}

func bindFunctions(api *OrtApi) {
	purego.RegisterFunc(&getErrorMessageFunc, api.GetErrorMessage)
	purego.RegisterFunc(&getErrorCodeFunc, api.GetErrorCode)
	purego.RegisterFunc(&releaseStatusFunc, api.ReleaseStatus)

	purego.RegisterFunc(&createEnvFunc, api.CreateEnv)
	purego.RegisterFunc(&releaseEnvFunc, api.ReleaseEnv)
	purego.RegisterFunc(&enableTelemetryEventsFunc, api.EnableTelemetryEvents)
	purego.RegisterFunc(&disableTelemetryEventsFunc, api.DisableTelemetryEvents)

	purego.RegisterFunc(&createMemoryInfoFunc, api.CreateMemoryInfo)
	purego.RegisterFunc(&releaseMemoryInfoFunc, api.ReleaseMemoryInfo)
	purego.RegisterFunc(&createTensorWithDataAsOrtValueFunc, api.CreateTensorWithDataAsOrtValue)
	purego.RegisterFunc(&releaseValueFunc, api.ReleaseValue)
	purego.RegisterFunc(&getTensorMutableDataFunc, api.GetTensorMutableData)
	purego.RegisterFunc(&getTensorTypeAndShapeFunc, api.GetTensorTypeAndShape)

	purego.RegisterFunc(&getOnnxTypeFromTypeInfoFunc, api.GetOnnxTypeFromTypeInfo)
	purego.RegisterFunc(&castTypeInfoToTensorInfoFunc, api.CastTypeInfoToTensorInfo)
	purego.RegisterFunc(&getTensorElementTypeFunc, api.GetTensorElementType)
	purego.RegisterFunc(&getDimensionsCountFunc, api.GetDimensionsCount)
	purego.RegisterFunc(&getDimensionsFunc, api.GetDimensions)
	purego.RegisterFunc(&releaseTypeInfoFunc, api.ReleaseTypeInfo)
	purego.RegisterFunc(&releaseTensorTypeAndShapeInfoFunc, api.ReleaseTensorTypeAndShapeInfo)

	purego.RegisterFunc(&getAllocatorWithDefaultOptionsFunc, api.GetAllocatorWithDefaultOptions)
	purego.RegisterFunc(&allocatorAllocFunc, api.AllocatorAlloc)
	purego.RegisterFunc(&allocatorFreeFunc, api.AllocatorFree)

	purego.RegisterFunc(&createSessionOptionsFunc, api.CreateSessionOptions)
	purego.RegisterFunc(&releaseSessionOptionsFunc, api.ReleaseSessionOptions)
	purego.RegisterFunc(&setIntraOpNumThreadsFunc, api.SetIntraOpNumThreads)
	purego.RegisterFunc(&setInterOpNumThreadsFunc, api.SetInterOpNumThreads)
	purego.RegisterFunc(&setSessionGraphOptimizationLevelFunc, api.SetSessionGraphOptimizationLevel)
	purego.RegisterFunc(&addSessionConfigEntryFunc, api.AddSessionConfigEntry)

	purego.RegisterFunc(&createSessionFunc, api.CreateSession)
	purego.RegisterFunc(&createSessionFromArrayFunc, api.CreateSessionFromArray)
	purego.RegisterFunc(&runSessionFunc, api.Run)
	purego.RegisterFunc(&releaseSessionFunc, api.ReleaseSession)
	purego.RegisterFunc(&sessionGetInputCountFunc, api.SessionGetInputCount)
	purego.RegisterFunc(&sessionGetOutputCountFunc, api.SessionGetOutputCount)
	purego.RegisterFunc(&sessionGetInputNameFunc, api.SessionGetInputName)
	purego.RegisterFunc(&sessionGetOutputNameFunc, api.SessionGetOutputName)
	purego.RegisterFunc(&sessionGetInputTypeInfoFunc, api.SessionGetInputTypeInfo)
	purego.RegisterFunc(&sessionGetOutputTypeInfoFunc, api.SessionGetOutputTypeInfo)
}

// clearFunctions drops every binding. Caller must hold mu.
func clearFunctions() {
	getVersionStringFunc = nil
	getErrorMessageFunc = nil
	getErrorCodeFunc = nil
	releaseStatusFunc = nil

	createEnvFunc = nil
	releaseEnvFunc = nil
	enableTelemetryEventsFunc = nil
	disableTelemetryEventsFunc = nil

	createMemoryInfoFunc = nil
	releaseMemoryInfoFunc = nil
	createTensorWithDataAsOrtValueFunc = nil
	releaseValueFunc = nil
	getTensorMutableDataFunc = nil
	getTensorTypeAndShapeFunc = nil

	getOnnxTypeFromTypeInfoFunc = nil
	castTypeInfoToTensorInfoFunc = nil
	getTensorElementTypeFunc = nil
	getDimensionsCountFunc = nil
	getDimensionsFunc = nil
	releaseTypeInfoFunc = nil
	releaseTensorTypeAndShapeInfoFunc = nil

	getAllocatorWithDefaultOptionsFunc = nil
	allocatorAllocFunc = nil
	allocatorFreeFunc = nil

	createSessionOptionsFunc = nil
	releaseSessionOptionsFunc = nil
	setIntraOpNumThreadsFunc = nil
	setInterOpNumThreadsFunc = nil
	setSessionGraphOptimizationLevelFunc = nil
	addSessionConfigEntryFunc = nil

	createSessionFunc = nil
	createSessionFromArrayFunc = nil
	runSessionFunc = nil
	releaseSessionFunc = nil
	sessionGetInputCountFunc = nil
	sessionGetOutputCountFunc = nil
	sessionGetInputNameFunc = nil
	sessionGetOutputNameFunc = nil
	sessionGetInputTypeInfoFunc = nil
	sessionGetOutputTypeInfoFunc = nil
}

// DestroyEnvironment decrements the environment reference count and, when it
// reaches zero, releases the OrtEnv and unloads the shared library.
func DestroyEnvironment() error {
	ortCallMu.Lock()
	defer ortCallMu.Unlock()

	mu.Lock()
	defer mu.Unlock()

	if refCount == 0 {
		return nil
	}

	refCount--
	if refCount > 0 {
		return nil
	}

	if ortEnv != 0 && releaseEnvFunc != nil {
		releaseEnvFunc(ortEnv)
	}
	ortEnv = 0

	var err error
	if ortLib != 0 {
		if closeErr := closeLibrary(ortLib); closeErr != nil {
			err = fmt.Errorf("failed to unload ONNX Runtime library: %w", closeErr)
		}
	}
	ortLib = 0
	ortAPI = nil
	clearFunctions()

	return err
}

// IsInitialized returns true if the environment is initialized
func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return refCount > 0
}

// SetSharedLibraryPath sets the path to the ONNX Runtime shared library.
// The path cannot change while the environment is initialized.
func SetSharedLibraryPath(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if refCount > 0 {
		return fmt.Errorf("cannot change library path after environment is initialized")
	}
	libPath = path
	return nil
}

// SetLogLevel sets the severity used when the OrtEnv is created.
func SetLogLevel(level LoggingLevel) error {
	mu.Lock()
	defer mu.Unlock()

	if refCount > 0 {
		return fmt.Errorf("cannot change log level after environment is initialized")
	}
	if level < LoggingLevelVerbose || level > LoggingLevelFatal {
		return fmt.Errorf("invalid log level %d", level)
	}
	logLevel = level
	return nil
}

// GetVersionString returns the ONNX Runtime version string, or "0.0.0-dev"
// when the runtime is not loaded.
func GetVersionString() string {
	mu.Lock()
	fn := getVersionStringFunc
	mu.Unlock()

	if fn == nil {
		return "0.0.0-dev"
	}
	return CstringToGo(fn())
}

// EnableTelemetryEvents turns on ORT platform telemetry for the environment.
func EnableTelemetryEvents() error {
	return setTelemetry(true)
}

// DisableTelemetryEvents turns off ORT platform telemetry for the environment.
func DisableTelemetryEvents() error {
	return setTelemetry(false)
}

func setTelemetry(enable bool) error {
	mu.Lock()
	env := ortEnv
	fn := disableTelemetryEventsFunc
	if enable {
		fn = enableTelemetryEventsFunc
	}
	mu.Unlock()

	if env == 0 || fn == nil {
		return fmt.Errorf("ONNX Runtime not initialized")
	}
	if status := fn(env); status != 0 {
		return statusError("failed to change telemetry state", status)
	}
	return nil
}

// environmentHandle returns the OrtEnv handle or an error if the runtime is not
// initialized. Caller must hold mu.
func environmentHandle() (uintptr, error) {
	if ortAPI == nil || ortEnv == 0 {
		return 0, fmt.Errorf("ONNX Runtime not initialized")
	}
	return ortEnv, nil
}

func getErrorMessage(status uintptr) string {
	if status == 0 || getErrorMessageFunc == nil {
		return ""
	}
	return CstringToGo(getErrorMessageFunc(status))
}

func getErrorCode(status uintptr) ErrorCode {
	if status == 0 {
		return ErrorCodeOK
	}
	if getErrorCodeFunc == nil {
		return ErrorCodeFail
	}
	return ErrorCode(getErrorCodeFunc(status))
}

func releaseStatus(status uintptr) {
	if status == 0 || releaseStatusFunc == nil {
		return
	}
	releaseStatusFunc(status)
}
