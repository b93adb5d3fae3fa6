package ort

import (
	"fmt"
	"runtime"
)

// NewSessionOptions creates an OrtSessionOptions with runtime defaults.
// Maps to OrtApi::CreateSessionOptions in the ONNX Runtime C API.
func NewSessionOptions() (*SessionOptions, error) {
	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	if ortAPI == nil || createSessionOptionsFunc == nil {
		mu.Unlock()
		return nil, fmt.Errorf("ONNX Runtime not initialized")
	}
	create := createSessionOptionsFunc
	mu.Unlock()

	var handle uintptr
	if status := create(&handle); status != 0 {
		return nil, statusError("failed to create session options", status)
	}

	options := &SessionOptions{
		handle:                 handle,
		graphOptimizationLevel: GraphOptimizationLevelEnableAll,
		configEntries:          make(map[string]string),
	}
	runtime.SetFinalizer(options, func(o *SessionOptions) {
		_ = o.Destroy()
	})
	return options, nil
}

// SetIntraOpNumThreads sets the number of threads used to parallelize a single node.
// Zero lets the runtime choose.
func (o *SessionOptions) SetIntraOpNumThreads(threads int) error {
	if threads < 0 {
		return fmt.Errorf("intra-op thread count must be >= 0, got %d", threads)
	}
	if err := o.call("failed to set intra-op thread count", func(handle uintptr) uintptr {
		// #nosec G115 -- threads is validated as non-negative and small.
		return setIntraOpNumThreadsFunc(handle, int32(threads))
	}); err != nil {
		return err
	}
	o.intraOpNumThreads = threads
	return nil
}

// SetInterOpNumThreads sets the number of threads used to run independent nodes.
// Zero lets the runtime choose.
func (o *SessionOptions) SetInterOpNumThreads(threads int) error {
	if threads < 0 {
		return fmt.Errorf("inter-op thread count must be >= 0, got %d", threads)
	}
	if err := o.call("failed to set inter-op thread count", func(handle uintptr) uintptr {
		// #nosec G115 -- threads is validated as non-negative and small.
		return setInterOpNumThreadsFunc(handle, int32(threads))
	}); err != nil {
		return err
	}
	o.interOpNumThreads = threads
	return nil
}

// SetGraphOptimizationLevel selects which graph rewrites run at session creation.
func (o *SessionOptions) SetGraphOptimizationLevel(level GraphOptimizationLevel) error {
	if level < GraphOptimizationLevelDisableAll || level > GraphOptimizationLevelEnableAll {
		return fmt.Errorf("invalid graph optimization level %d", level)
	}
	if err := o.call("failed to set graph optimization level", func(handle uintptr) uintptr {
		return setSessionGraphOptimizationLevelFunc(handle, ortGraphOptimizationLevel(level))
	}); err != nil {
		return err
	}
	o.graphOptimizationLevel = level
	return nil
}

// AddConfigEntry sets a session configuration key, for example
// SessionOptionsConfigLoadModelFormat.
func (o *SessionOptions) AddConfigEntry(key, value string) error {
	if key == "" {
		return fmt.Errorf("config entry key cannot be empty")
	}
	keyBytes, keyPtr := GoToCstring(key)
	valueBytes, valuePtr := GoToCstring(value)
	err := o.call(fmt.Sprintf("failed to add session config entry %q", key), func(handle uintptr) uintptr {
		return addSessionConfigEntryFunc(handle, keyPtr, valuePtr)
	})
	runtime.KeepAlive(keyBytes)
	runtime.KeepAlive(valueBytes)
	if err != nil {
		return err
	}
	o.configEntries[key] = value
	return nil
}

// ConfigEntry returns a value previously set with AddConfigEntry.
func (o *SessionOptions) ConfigEntry(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	value, ok := o.configEntries[key]
	return value, ok
}

// GraphOptimizationLevel returns the configured optimization level.
func (o *SessionOptions) GraphOptimizationLevel() GraphOptimizationLevel {
	return o.graphOptimizationLevel
}

// Destroy releases the session options. Sessions created from them are not affected.
func (o *SessionOptions) Destroy() error {
	if o == nil {
		return nil
	}

	ortCallMu.Lock()
	defer ortCallMu.Unlock()

	mu.Lock()
	handle := o.handle
	release := releaseSessionOptionsFunc
	o.handle = 0
	runtime.SetFinalizer(o, nil)
	mu.Unlock()

	if handle != 0 && release != nil {
		release(handle)
	}
	return nil
}

func (o *SessionOptions) call(op string, fn func(handle uintptr) uintptr) error {
	if o == nil {
		return fmt.Errorf("session options are nil")
	}

	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	handle := o.handle
	initialized := ortAPI != nil
	mu.Unlock()

	if handle == 0 {
		return fmt.Errorf("session options handle is not initialized")
	}
	if !initialized {
		return fmt.Errorf("ONNX Runtime not initialized")
	}
	if status := fn(handle); status != 0 {
		return statusError(op, status)
	}
	return nil
}

// ortGraphOptimizationLevel maps levels onto the C enum values
// (ORT_DISABLE_ALL=0, ORT_ENABLE_BASIC=1, ORT_ENABLE_EXTENDED=2, ORT_ENABLE_ALL=99).
func ortGraphOptimizationLevel(level GraphOptimizationLevel) GraphOptimizationLevel {
	if level == GraphOptimizationLevelEnableAll {
		return 99
	}
	return level
}
