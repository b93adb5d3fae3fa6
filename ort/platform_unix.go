//go:build !windows

package ort

import (
	"errors"
	"fmt"
	"os"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

func openLibrary(path string) (uintptr, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	if handle == 0 {
		return 0, fmt.Errorf("dlopen returned a nil handle")
	}
	return handle, nil
}

func lookupSymbol(lib uintptr, name string) (uintptr, error) {
	return purego.Dlsym(lib, name)
}

func closeLibrary(lib uintptr) error {
	if lib == 0 {
		return nil
	}
	return purego.Dlclose(lib)
}

// tryLock takes an exclusive advisory lock without blocking. It reports false
// with a nil error when another process holds the lock.
func tryLock(file *os.File) (bool, error) {
	err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EAGAIN):
		return false, nil
	default:
		return false, err
	}
}

func unlock(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}

// ortPath converts a path to ORTCHAR_T, which is char on unix. The backing
// value must stay alive until ORT is done with the pointer.
func ortPath(path string) (uintptr, any, error) {
	backing, ptr := GoToCstring(path)
	return ptr, backing, nil
}
