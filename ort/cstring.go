package ort

import "unsafe"

const (
	// Pointers below the first page are never valid C strings.
	minValidPointer = 4096
	// Runtime strings (names, versions, error messages) are short; a longer
	// scan means the pointer is not a NUL-terminated string.
	maxCStringLen = 1 << 20
)

// CstringToGo copies a NUL-terminated C string into a Go string.
// It returns "" for NULL or obviously invalid pointers.
func CstringToGo(ptr uintptr) string {
	if ptr < minValidPointer {
		return ""
	}

	// #nosec G103 -- ptr is a runtime-owned NUL-terminated string.
	start := unsafe.Pointer(ptr)
	n := 0
	for n < maxCStringLen && *(*byte)(unsafe.Add(start, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(start), n))
}

// GoToCstring returns a NUL-terminated copy of s and a pointer to its first
// byte. The caller must keep the returned slice alive (runtime.KeepAlive)
// until the C side is done with the pointer:
//
//	logIDBytes, logIDPtr := GoToCstring("onnx-fuzz")
//	status := createEnvFunc(level, logIDPtr, &env)
//	runtime.KeepAlive(logIDBytes)
func GoToCstring(s string) ([]byte, uintptr) {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b, uintptr(unsafe.Pointer(&b[0]))
}
