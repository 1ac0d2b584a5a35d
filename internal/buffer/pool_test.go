package buffer

import (
	"testing"
)

func TestGetReturnsRequestedLength(t *testing.T) {
	pool := NewBytePool()

	tests := []struct {
		name    string
		request int
		wantCap int
	}{
		{name: "exact bucket", request: 4096, wantCap: 4096},
		{name: "rounds up to next bucket", request: 5000, wantCap: 32768},
		{name: "smallest bucket", request: 1, wantCap: 4096},
		{name: "largest bucket", request: 1048576, wantCap: 1048576},
		{name: "oversized allocates directly", request: 2 * 1048576, wantCap: 2 * 1048576},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := pool.Get(tt.request)
			if len(buf) != tt.request {
				t.Errorf("Get(%d) length = %d, want %d", tt.request, len(buf), tt.request)
			}
			if cap(buf) != tt.wantCap {
				t.Errorf("Get(%d) capacity = %d, want %d", tt.request, cap(buf), tt.wantCap)
			}
			pool.Put(buf)
		})
	}
}

func TestPutClearsBuffer(t *testing.T) {
	pool := NewBytePool()

	buf := pool.Get(4096)
	for i := range buf {
		buf[i] = 0xFF
	}
	pool.Put(buf)

	// The next buffer from the same bucket must not leak prior contents.
	again := pool.Get(4096)
	for i, b := range again {
		if b != 0 {
			t.Fatalf("byte %d not cleared: %#x", i, b)
		}
	}
	pool.Put(again)
}

func TestPutNilIsSafe(t *testing.T) {
	pool := NewBytePool()
	pool.Put(nil) // must not panic
}

func TestGetStats(t *testing.T) {
	pool := NewBytePool()
	stats := pool.GetStats()

	if stats.TotalPools != len(stats.PoolSizes) {
		t.Errorf("TotalPools = %d, want %d", stats.TotalPools, len(stats.PoolSizes))
	}
	if stats.MinBufferSize != 4096 {
		t.Errorf("MinBufferSize = %d, want 4096", stats.MinBufferSize)
	}
	if stats.MaxBufferSize != 1048576 {
		t.Errorf("MaxBufferSize = %d, want 1048576", stats.MaxBufferSize)
	}
}

func TestDefaultPoolHelpers(t *testing.T) {
	buf := GetBuffer(4096)
	if len(buf) != 4096 {
		t.Errorf("GetBuffer(4096) length = %d", len(buf))
	}
	PutBuffer(buf)
}
