package command

import (
	"errors"
	"sync"
	"testing"
)

func req(code uint64) TransmitRequest {
	return TransmitRequest{Code: code, BitLength: 24, Protocol: 1, RepeatCount: 5}
}

func TestQueue_Capacity(t *testing.T) {
	q := NewQueue(DefaultCapacity)

	for i := 0; i < DefaultCapacity; i++ {
		if err := q.Enqueue(req(uint64(i))); err != nil {
			t.Fatalf("Enqueue() #%d error = %v", i, err)
		}
		if q.Len() > q.Cap() {
			t.Fatalf("Len() = %d exceeds Cap() = %d", q.Len(), q.Cap())
		}
	}

	if !q.Full() {
		t.Error("Full() = false at capacity")
	}

	err := q.Enqueue(req(999))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue() beyond capacity error = %v, want ErrQueueFull", err)
	}
	if q.Len() != DefaultCapacity {
		t.Errorf("Len() = %d after rejected enqueue, want %d", q.Len(), DefaultCapacity)
	}

	// The rejected request did not overwrite the oldest entry
	got, _ := q.Dequeue()
	if got.Code != 0 {
		t.Errorf("oldest entry Code = %d, want 0", got.Code)
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := NewQueue(5)

	// Wrap the ring a few times
	next := uint64(0)
	want := uint64(0)
	for round := 0; round < 4; round++ {
		for i := 0; i < 4; i++ {
			if err := q.Enqueue(req(next)); err != nil {
				t.Fatalf("Enqueue(%d) error = %v", next, err)
			}
			next++
		}
		for i := 0; i < 4; i++ {
			got, ok := q.Dequeue()
			if !ok {
				t.Fatal("Dequeue() returned false on non-empty queue")
			}
			if got.Code != want {
				t.Fatalf("Dequeue() Code = %d, want %d", got.Code, want)
			}
			want++
		}
	}
}

func TestQueue_EmptyDequeue(t *testing.T) {
	q := NewQueue(3)

	for i := 0; i < 3; i++ {
		got, ok := q.Dequeue()
		if ok {
			t.Fatalf("Dequeue() on empty queue returned %+v", got)
		}
		if got != (TransmitRequest{}) {
			t.Errorf("Dequeue() on empty queue value = %+v, want zero", got)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}

	// Still usable afterwards
	if err := q.Enqueue(req(7)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got, ok := q.Dequeue(); !ok || got.Code != 7 {
		t.Errorf("Dequeue() = %+v, %v", got, ok)
	}
}

func TestQueue_ValuesAreCopies(t *testing.T) {
	q := NewQueue(2)
	r := req(1)
	if err := q.Enqueue(r); err != nil {
		t.Fatal(err)
	}
	r.Code = 42

	got, _ := q.Dequeue()
	if got.Code != 1 {
		t.Errorf("queued request changed to Code = %d", got.Code)
	}
}

func TestNewQueue_DefaultCapacity(t *testing.T) {
	if got := NewQueue(0).Cap(); got != DefaultCapacity {
		t.Errorf("NewQueue(0).Cap() = %d, want %d", got, DefaultCapacity)
	}
}

func TestQueue_ConcurrentLenReader(t *testing.T) {
	q := NewQueue(8)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				if n := q.Len(); n < 0 || n > q.Cap() {
					t.Errorf("Len() = %d out of range", n)
					return
				}
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		_ = q.Enqueue(req(uint64(i)))
		q.Dequeue()
	}
	close(done)
	wg.Wait()
}

func TestNewTransmitRequest(t *testing.T) {
	tests := []struct {
		name      string
		bitLength uint
		protocol  int
		repeat    int
		wantErr   bool
	}{
		{"valid", 24, 1, 5, false},
		{"zero repeat", 24, 1, 0, false},
		{"max bits", 64, 2, 1, false},
		{"zero bits", 0, 1, 5, true},
		{"too many bits", 65, 1, 5, true},
		{"zero protocol", 24, 0, 5, true},
		{"max repeat", 24, 1, MaxRepeatCount, false},
		{"negative repeat", 24, 1, -1, true},
		{"repeat above max", 24, 1, MaxRepeatCount + 1, true},
		{"huge repeat", 64, 1, 1 << 62, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTransmitRequest(1234, tt.bitLength, tt.protocol, tt.repeat)
			if tt.wantErr {
				if !errors.Is(err, ErrDecode) {
					t.Errorf("error = %v, want ErrDecode", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			want := TransmitRequest{Code: 1234, BitLength: tt.bitLength, Protocol: tt.protocol, RepeatCount: tt.repeat}
			if got != want {
				t.Errorf("got %+v, want %+v", got, want)
			}
		})
	}
}
