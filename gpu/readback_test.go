// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal"
)

func TestAlignRowPitch(t *testing.T) {
	tests := []struct {
		rowBytes uint32
		want     uint32
	}{
		{4, 256},    // 1px row
		{8, 256},    // 2px row
		{256, 256},  // exactly aligned
		{260, 512},  // just over
		{1024, 1024},
		{1028, 1280},
	}
	for _, tt := range tests {
		if got := alignRowPitch(tt.rowBytes); got != tt.want {
			t.Errorf("alignRowPitch(%d) = %d, want %d", tt.rowBytes, got, tt.want)
		}
	}
}

func TestStripRowPadding(t *testing.T) {
	// 2 rows of 8 tight bytes inside 16-byte aligned rows.
	aligned := make([]byte, 32)
	copy(aligned[0:8], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(aligned[16:24], []byte{9, 10, 11, 12, 13, 14, 15, 16})

	got := stripRowPadding(aligned, 8, 16, 2)
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if !bytes.Equal(got, want) {
		t.Errorf("stripRowPadding = %v, want %v", got, want)
	}
}

func TestStripRowPaddingNoPadding(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	got := stripRowPadding(data, 4, 4, 2)
	if &got[0] != &data[0] {
		t.Error("expected the input slice back when pitches match")
	}
}

func TestReadResultResolveOnce(t *testing.T) {
	var r readResult

	r.resolve([]byte{1, 2, 3}, nil)
	// Second resolve must not overwrite the first.
	r.resolve(nil, errors.New("late failure"))

	data, err := r.take()
	if err != nil {
		t.Fatalf("take returned error: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("take = %v, want [1 2 3]", data)
	}
}

func TestReadResultFailure(t *testing.T) {
	var r readResult
	r.resolve(nil, ErrReadbackFailed)

	data, err := r.take()
	if !errors.Is(err, ErrReadbackFailed) {
		t.Errorf("take error = %v, want ErrReadbackFailed", err)
	}
	if data != nil {
		t.Errorf("take data = %v, want nil", data)
	}
}

func TestReadResultPending(t *testing.T) {
	var r readResult
	if _, err := r.take(); !errors.Is(err, ErrReadbackPending) {
		t.Errorf("take error = %v, want ErrReadbackPending", err)
	}
}

func TestPadLayerRows(t *testing.T) {
	// One 2x2 layer, rows widened from 8 to 16 bytes.
	layer := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	out := padLayerRows([][]byte{layer}, 8, 16, 2)

	if len(out) != 32 {
		t.Fatalf("len = %d, want 32", len(out))
	}
	if !bytes.Equal(out[0:8], layer[0:8]) {
		t.Error("first row not copied")
	}
	if !bytes.Equal(out[16:24], layer[8:16]) {
		t.Error("second row not copied at aligned offset")
	}
}

// stubFenceWaiter fakes the fence wait outcome.
type stubFenceWaiter struct {
	ok  bool
	err error
}

func (s stubFenceWaiter) Wait(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
	return s.ok, s.err
}

// stubBufferReader fills the destination with a fixed byte or fails.
type stubBufferReader struct {
	fill byte
	err  error
}

func (s stubBufferReader) ReadBuffer(_ hal.Buffer, _ uint64, data []byte) error {
	if s.err != nil {
		return s.err
	}
	for i := range data {
		data[i] = s.fill
	}
	return nil
}

func TestAwaitReadback(t *testing.T) {
	var r readResult
	awaitReadback(stubFenceWaiter{ok: true}, stubBufferReader{fill: 0xAB}, nil, nil, 8, &r)

	data, err := r.take()
	if err != nil {
		t.Fatalf("take returned error: %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("len = %d, want 8", len(data))
	}
	for _, b := range data {
		if b != 0xAB {
			t.Fatalf("data = %v, want all 0xAB", data)
		}
	}
}

func TestAwaitReadbackWaitTimeout(t *testing.T) {
	// Fence wait returning false without an error (timeout) must surface
	// as a readback failure, never as an empty image.
	var r readResult
	awaitReadback(stubFenceWaiter{ok: false}, stubBufferReader{}, nil, nil, 8, &r)

	data, err := r.take()
	if !errors.Is(err, ErrReadbackFailed) {
		t.Errorf("take error = %v, want ErrReadbackFailed", err)
	}
	if data != nil {
		t.Errorf("take data = %v, want nil", data)
	}
}

func TestAwaitReadbackWaitError(t *testing.T) {
	var r readResult
	awaitReadback(stubFenceWaiter{ok: false, err: errors.New("device lost")}, stubBufferReader{}, nil, nil, 8, &r)

	if _, err := r.take(); !errors.Is(err, ErrReadbackFailed) {
		t.Errorf("take error = %v, want ErrReadbackFailed", err)
	}
}

func TestAwaitReadbackReadError(t *testing.T) {
	var r readResult
	awaitReadback(stubFenceWaiter{ok: true}, stubBufferReader{err: errors.New("map failed")}, nil, nil, 8, &r)

	data, err := r.take()
	if !errors.Is(err, ErrReadbackFailed) {
		t.Errorf("take error = %v, want ErrReadbackFailed", err)
	}
	if data != nil {
		t.Errorf("take data = %v, want nil", data)
	}
}

func TestPadLayerRowsTight(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	b := []byte{5, 6, 7, 8}
	out := padLayerRows([][]byte{a, b}, 4, 4, 1)
	if !bytes.Equal(out, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("padLayerRows = %v, want layers concatenated", out)
	}
}
