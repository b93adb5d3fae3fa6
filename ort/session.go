package ort

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// Session represents an ONNX Runtime inference session bound to one model.
//
// Input and output names are copied into Go memory at creation time, so they
// stay valid until Destroy without holding runtime allocations. Run calls on
// one session are serialized; Destroy waits for an in-flight Run.
type Session struct {
	runMu       sync.Mutex
	handle      uintptr // Pointer to OrtSession
	inputNames  []string
	outputNames []string
}

// NewSession creates a session by letting the runtime load the model file at
// modelPath. options may be nil.
func NewSession(modelPath string, options *SessionOptions) (*Session, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("model path cannot be empty")
	}

	pathPtr, pathBacking, err := ortPath(modelPath)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(pathBacking)

	return newSession(options, func(env, optionsHandle uintptr, out *uintptr) (uintptr, error) {
		if createSessionFunc == nil {
			return 0, fmt.Errorf("ONNX Runtime not initialized")
		}
		return createSessionFunc(env, pathPtr, optionsHandle, out), nil
	}, fmt.Sprintf("failed to create session from %q", modelPath))
}

// NewSessionFromBytes creates a session from an in-memory model. The format of
// the buffer is ONNX unless options carry SessionOptionsConfigLoadModelFormat.
// The runtime reads the buffer during the call; callers keep ownership of it.
func NewSessionFromBytes(model []byte, options *SessionOptions) (*Session, error) {
	if len(model) == 0 {
		return nil, fmt.Errorf("model data cannot be empty")
	}

	pinner := &runtime.Pinner{}
	pinner.Pin(unsafe.SliceData(model))
	defer pinner.Unpin()
	// #nosec G103 -- model is pinned for the duration of CreateSessionFromArray.
	dataPtr := uintptr(unsafe.Pointer(unsafe.SliceData(model)))

	return newSession(options, func(env, optionsHandle uintptr, out *uintptr) (uintptr, error) {
		if createSessionFromArrayFunc == nil {
			return 0, fmt.Errorf("ONNX Runtime not initialized")
		}
		return createSessionFromArrayFunc(env, dataPtr, uintptr(len(model)), optionsHandle, out), nil
	}, fmt.Sprintf("failed to create session from %d-byte model", len(model)))
}

type sessionCreator func(env, optionsHandle uintptr, out *uintptr) (uintptr, error)

func newSession(options *SessionOptions, create sessionCreator, op string) (*Session, error) {
	if options != nil && options.handle == 0 {
		return nil, fmt.Errorf("session options handle is not initialized")
	}

	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	env, err := environmentHandle()
	var optionsHandle uintptr
	if options != nil {
		optionsHandle = options.handle
	}
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	var handle uintptr
	status, err := create(env, optionsHandle, &handle)
	if err != nil {
		return nil, err
	}
	if status != 0 {
		return nil, statusError(op, status)
	}
	runtime.KeepAlive(options)

	session := &Session{handle: handle}
	if err := session.loadNames(); err != nil {
		if releaseSessionFunc != nil {
			releaseSessionFunc(handle)
		}
		return nil, err
	}

	runtime.SetFinalizer(session, func(s *Session) {
		_ = s.Destroy()
	})
	return session, nil
}

// loadNames copies input and output names out of runtime-allocated strings.
// Caller must hold ortCallMu for reading.
func (s *Session) loadNames() error {
	if sessionGetInputCountFunc == nil || sessionGetOutputCountFunc == nil ||
		sessionGetInputNameFunc == nil || sessionGetOutputNameFunc == nil ||
		getAllocatorWithDefaultOptionsFunc == nil || allocatorFreeFunc == nil {
		return fmt.Errorf("ONNX Runtime not initialized")
	}

	var allocator uintptr
	if status := getAllocatorWithDefaultOptionsFunc(&allocator); status != 0 {
		return statusError("failed to get default allocator", status)
	}

	inputNames, err := readNames(s.handle, allocator, "input", sessionGetInputCountFunc, sessionGetInputNameFunc)
	if err != nil {
		return err
	}
	outputNames, err := readNames(s.handle, allocator, "output", sessionGetOutputCountFunc, sessionGetOutputNameFunc)
	if err != nil {
		return err
	}

	s.inputNames = inputNames
	s.outputNames = outputNames
	return nil
}

func readNames(
	session, allocator uintptr,
	kind string,
	getCount func(session uintptr, out *uintptr) uintptr,
	getName func(session uintptr, index uintptr, allocator uintptr, out *uintptr) uintptr,
) ([]string, error) {
	var count uintptr
	if status := getCount(session, &count); status != 0 {
		return nil, statusError(fmt.Sprintf("failed to get %s count", kind), status)
	}

	names := make([]string, 0, count)
	for i := uintptr(0); i < count; i++ {
		var namePtr uintptr
		if status := getName(session, i, allocator, &namePtr); status != 0 {
			return nil, statusError(fmt.Sprintf("failed to get %s name at index %d", kind, i), status)
		}
		names = append(names, CstringToGo(namePtr))
		if namePtr != 0 {
			if status := allocatorFreeFunc(allocator, namePtr); status != 0 {
				return nil, statusError(fmt.Sprintf("failed to free %s name at index %d", kind, i), status)
			}
		}
	}
	return names, nil
}

// InputCount returns the number of declared model inputs.
func (s *Session) InputCount() int {
	if s == nil {
		return 0
	}
	return len(s.inputNames)
}

// OutputCount returns the number of declared model outputs.
func (s *Session) OutputCount() int {
	if s == nil {
		return 0
	}
	return len(s.outputNames)
}

// InputNames returns the model input names in declaration order.
func (s *Session) InputNames() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.inputNames...)
}

// OutputNames returns the model output names in declaration order.
func (s *Session) OutputNames() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.outputNames...)
}

// InputTypeInfo returns the declared type of input i.
func (s *Session) InputTypeInfo(i int) (TypeInfo, error) {
	return s.typeInfo(i, "input", len(s.inputNames), func() func(uintptr, uintptr, *uintptr) uintptr {
		return sessionGetInputTypeInfoFunc
	})
}

// OutputTypeInfo returns the declared type of output i.
func (s *Session) OutputTypeInfo(i int) (TypeInfo, error) {
	return s.typeInfo(i, "output", len(s.outputNames), func() func(uintptr, uintptr, *uintptr) uintptr {
		return sessionGetOutputTypeInfoFunc
	})
}

func (s *Session) typeInfo(i int, kind string, count int, getter func() func(uintptr, uintptr, *uintptr) uintptr) (TypeInfo, error) {
	if s == nil {
		return TypeInfo{}, fmt.Errorf("session is nil")
	}
	if i < 0 || i >= count {
		return TypeInfo{}, fmt.Errorf("%s index %d out of range [0, %d)", kind, i, count)
	}

	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	handle := s.handle
	get := getter()
	mu.Unlock()

	if handle == 0 {
		return TypeInfo{}, fmt.Errorf("session has been destroyed")
	}
	if get == nil {
		return TypeInfo{}, fmt.Errorf("ONNX Runtime not initialized")
	}

	var typeInfo uintptr
	if status := get(handle, uintptr(i), &typeInfo); status != 0 {
		return TypeInfo{}, statusError(fmt.Sprintf("failed to get %s type info at index %d", kind, i), status)
	}
	defer releaseTypeInfo(typeInfo)

	return readTypeInfo(typeInfo)
}

// Run executes the model. inputNames/inputs and outputNames/outputs are
// index-aligned. A nil entry in outputs asks the runtime to allocate that
// output; on success it is replaced by a *DynamicTensor owned by the caller.
func (s *Session) Run(inputNames []string, inputs []Value, outputNames []string, outputs []Value) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	if len(inputNames) != len(inputs) {
		return fmt.Errorf("input names/values count mismatch: %d names, %d values", len(inputNames), len(inputs))
	}
	if len(outputNames) != len(outputs) {
		return fmt.Errorf("output names/values count mismatch: %d names, %d values", len(outputNames), len(outputs))
	}
	if len(outputNames) == 0 {
		return fmt.Errorf("at least one output name is required")
	}

	inputHandles, err := valueHandles(inputs, "input", false)
	if err != nil {
		return err
	}
	outputHandles, err := valueHandles(outputs, "output", true)
	if err != nil {
		return err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	handle := s.handle
	run := runSessionFunc
	initialized := ortAPI != nil
	mu.Unlock()

	if handle == 0 {
		return fmt.Errorf("session has been destroyed")
	}
	if !initialized || run == nil {
		return fmt.Errorf("ONNX Runtime not initialized")
	}

	inputNameBacking, inputNamePtrs := makeCStringPointerArray(inputNames)
	outputNameBacking, outputNamePtrs := makeCStringPointerArray(outputNames)

	status := run(
		handle,
		0,
		sliceDataOrNil(inputNamePtrs),
		sliceDataOrNil(inputHandles),
		uintptr(len(inputHandles)),
		sliceDataOrNil(outputNamePtrs),
		uintptr(len(outputHandles)),
		sliceDataOrNil(outputHandles),
	)
	runtime.KeepAlive(inputNameBacking)
	runtime.KeepAlive(outputNameBacking)
	runtime.KeepAlive(inputs)
	if status != 0 {
		return statusError("failed to run session", status)
	}

	for i, value := range outputs {
		if value == nil && outputHandles[i] != 0 {
			outputs[i] = newDynamicTensor(outputHandles[i])
		}
	}
	return nil
}

// Destroy releases the session. It is safe to call more than once.
func (s *Session) Destroy() error {
	if s == nil {
		return nil
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	ortCallMu.Lock()
	defer ortCallMu.Unlock()

	mu.Lock()
	handle := s.handle
	release := releaseSessionFunc
	s.handle = 0
	s.inputNames = nil
	s.outputNames = nil
	runtime.SetFinalizer(s, nil)
	mu.Unlock()

	if handle != 0 && release != nil {
		release(handle)
	}
	return nil
}

func valueHandles(values []Value, kind string, allowNil bool) ([]uintptr, error) {
	handles := make([]uintptr, len(values))
	for i, value := range values {
		if value == nil || isNilValue(value) {
			if allowNil {
				continue
			}
			return nil, fmt.Errorf("%s value at index %d is nil", kind, i)
		}
		provider, ok := value.(valueHandleProvider)
		if !ok {
			return nil, fmt.Errorf("unsupported value implementation %T for %s at index %d", value, kind, i)
		}
		handle := provider.ortValueHandle()
		if handle == 0 {
			return nil, fmt.Errorf("%s value at index %d has been destroyed", kind, i)
		}
		handles[i] = handle
	}
	return handles, nil
}

func isNilValue(value Value) bool {
	switch v := value.(type) {
	case *DynamicTensor:
		return v == nil
	default:
		return false
	}
}

// makeCStringPointerArray converts names into NUL-terminated byte slices and
// an array of pointers to them. The backings must stay alive for the call.
func makeCStringPointerArray(names []string) ([][]byte, []uintptr) {
	if len(names) == 0 {
		return nil, nil
	}
	backings := make([][]byte, len(names))
	ptrs := make([]uintptr, len(names))
	for i, name := range names {
		backings[i], ptrs[i] = GoToCstring(name)
	}
	return backings, ptrs
}

func sliceDataOrNil(values []uintptr) *uintptr {
	if len(values) == 0 {
		return nil
	}
	return unsafe.SliceData(values)
}

func releaseTypeInfo(typeInfo uintptr) {
	if typeInfo != 0 && releaseTypeInfoFunc != nil {
		releaseTypeInfoFunc(typeInfo)
	}
}

var errNotTensor = errors.New("value is not a tensor")
