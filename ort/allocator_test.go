package ort

import (
	"strings"
	"testing"
	"unsafe"
)

func installFakeAllocator(t *testing.T) (backing *[64]byte, freed *[]uintptr) {
	t.Helper()
	resetEnvironmentState()
	t.Cleanup(resetEnvironmentState)

	backing = new([64]byte)
	freed = new([]uintptr)

	mu.Lock()
	defer mu.Unlock()
	ortAPI = &OrtApi{}
	getAllocatorWithDefaultOptionsFunc = func(out *uintptr) uintptr {
		*out = 9
		return 0
	}
	allocatorAllocFunc = func(allocator uintptr, size uintptr, out *uintptr) uintptr {
		*out = uintptr(unsafe.Pointer(&backing[0]))
		return 0
	}
	allocatorFreeFunc = func(allocator uintptr, ptr uintptr) uintptr {
		*freed = append(*freed, ptr)
		return 0
	}
	return backing, freed
}

func TestDefaultAllocatorWithoutORT(t *testing.T) {
	resetEnvironmentState()
	defer resetEnvironmentState()

	if _, err := DefaultAllocator(); err == nil || !strings.Contains(err.Error(), "ONNX Runtime not initialized") {
		t.Fatalf("expected not initialized error, got: %v", err)
	}

	var nilAllocator *Allocator
	if _, err := nilAllocator.Alloc(4); err == nil || !strings.Contains(err.Error(), "allocator is nil") {
		t.Fatalf("expected nil allocator error, got: %v", err)
	}
}

func TestAllocatorAllocAndFree(t *testing.T) {
	backing, freed := installFakeAllocator(t)

	alloc, err := DefaultAllocator()
	if err != nil {
		t.Fatalf("DefaultAllocator failed: %v", err)
	}

	if _, err := alloc.Alloc(0); err == nil || !strings.Contains(err.Error(), "must be > 0") {
		t.Fatalf("expected size error, got: %v", err)
	}

	buf, err := alloc.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if len(buf) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(buf))
	}
	buf[3] = 0xAB
	if backing[3] != 0xAB {
		t.Fatal("allocated slice must alias runtime memory")
	}

	if err := alloc.Free(buf); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if err := alloc.Free(nil); err != nil {
		t.Fatalf("Free(nil) should be a no-op, got: %v", err)
	}
	if len(*freed) != 1 || (*freed)[0] != uintptr(unsafe.Pointer(&backing[0])) {
		t.Fatalf("expected one free of the allocated pointer, got %v", *freed)
	}
}

func TestAllocatorAllocNullResult(t *testing.T) {
	installFakeAllocator(t)

	mu.Lock()
	allocatorAllocFunc = func(allocator uintptr, size uintptr, out *uintptr) uintptr {
		*out = 0
		return 0
	}
	mu.Unlock()

	alloc, err := DefaultAllocator()
	if err != nil {
		t.Fatalf("DefaultAllocator failed: %v", err)
	}
	if _, err := alloc.Alloc(8); err == nil || !strings.Contains(err.Error(), "runtime returned NULL") {
		t.Fatalf("expected NULL allocation error, got: %v", err)
	}
}
