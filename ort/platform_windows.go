//go:build windows

package ort

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func openLibrary(path string) (uintptr, error) {
	handle, err := windows.LoadLibrary(path)
	if err != nil {
		return 0, err
	}
	if handle == 0 {
		return 0, fmt.Errorf("LoadLibrary returned a nil handle")
	}
	return uintptr(handle), nil
}

func lookupSymbol(lib uintptr, name string) (uintptr, error) {
	proc, err := windows.GetProcAddress(windows.Handle(lib), name)
	if err != nil {
		return 0, err
	}
	return uintptr(unsafe.Pointer(proc)), nil
}

func closeLibrary(lib uintptr) error {
	if lib == 0 {
		return nil
	}
	return windows.FreeLibrary(windows.Handle(lib))
}

// tryLock takes an exclusive lock on the first byte without blocking. It
// reports false with a nil error when another process holds the lock.
func tryLock(file *os.File) (bool, error) {
	var overlapped windows.Overlapped
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	err := windows.LockFileEx(windows.Handle(file.Fd()), flags, 0, 1, 0, &overlapped)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, windows.ERROR_LOCK_VIOLATION), errors.Is(err, windows.ERROR_SHARING_VIOLATION):
		return false, nil
	default:
		return false, err
	}
}

func unlock(file *os.File) error {
	var overlapped windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(file.Fd()), 0, 1, 0, &overlapped)
}

// ortPath converts a path to ORTCHAR_T, which is wchar_t on Windows. The
// backing value must stay alive until ORT is done with the pointer.
func ortPath(path string) (uintptr, any, error) {
	utf16, err := windows.UTF16FromString(path)
	if err != nil {
		return 0, nil, fmt.Errorf("convert path to UTF-16: %w", err)
	}
	// #nosec G103 -- ORT takes a wchar_t* model path on Windows.
	return uintptr(unsafe.Pointer(unsafe.SliceData(utf16))), utf16, nil
}
