package sched

import "testing"

func TestSchedulerFairness(t *testing.T) {
	s := NewScheduler()
	for id := 1; id <= 3; id++ {
		s.InitSchedBlock(id)
	}

	counts := map[int]int{}
	for i := 0; i < 300; i++ {
		b, ok := s.NextSchedBlock()
		if !ok {
			t.Fatalf("pop %d: scheduler unexpectedly empty", i)
		}
		counts[b.ID]++
		s.AddSchedBlock(b)
	}

	for id, n := range counts {
		if n < 90 {
			t.Errorf("task %d admitted only %d/300 times, want roughly equal share", id, n)
		}
	}
	if s.PopCount() != 300 {
		t.Errorf("PopCount = %d, want 300", s.PopCount())
	}
}

func TestSchedulerPriorityBias(t *testing.T) {
	s := NewScheduler()
	s.InitSchedBlock(1)
	s.InitSchedBlock(2)

	// Task 1 gets a much higher priority (smaller pass), so it should
	// be admitted far more often than task 2 over many pops.
	hi, _ := s.heap.PopMin()
	hi.SetPriority(32)
	s.heap.Insert(hi)

	counts := map[int]int{}
	for i := 0; i < 1000; i++ {
		b, ok := s.NextSchedBlock()
		if !ok {
			t.Fatalf("pop %d: scheduler unexpectedly empty", i)
		}
		counts[b.ID]++
		s.AddSchedBlock(b)
	}
	if counts[1] <= counts[2] {
		t.Errorf("higher-priority task 1 admitted %d times, task 2 admitted %d times; want task 1 ahead", counts[1], counts[2])
	}
}

func TestStrideLessWraparound(t *testing.T) {
	// A small stride that has wrapped around BigStride should sort
	// after a stride that hasn't, since the gap exceeds BigStride/2.
	if !strideLess(^uint64(0)-1, 1) {
		t.Error("expected wrapped-around small stride to sort after a near-max stride")
	}
	if strideLess(5, 5) {
		t.Error("equal strides must never compare less")
	}
}

func TestHeapPopOnEmpty(t *testing.T) {
	h := NewHeap(blockLess)
	if _, ok := h.PopMin(); ok {
		t.Error("PopMin on empty heap should report !ok")
	}
}
