package stream

import (
	"errors"
	"testing"
)

func TestPool_TrySubmitRejectsWhenFull(t *testing.T) {
	p := NewPool(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})
	if !p.TrySubmit(func() { close(started); <-block }) {
		t.Fatalf("first submit rejected")
	}
	<-started
	if !p.TrySubmit(func() {}) {
		t.Fatalf("queued submit rejected")
	}
	if p.TrySubmit(func() {}) {
		t.Fatalf("submit into full queue should be rejected")
	}
	close(block)
	p.Close()
	if p.TrySubmit(func() {}) {
		t.Fatalf("submit after close should be rejected")
	}
}

func TestSpawn_PanicBecomesError(t *testing.T) {
	p := NewPool(1, 4)
	defer p.Close()

	task, ok := Spawn(p, func() (int, error) { panic("boom") })
	if !ok {
		t.Fatalf("spawn rejected")
	}
	<-task.Done()
	_, done, err := task.Poll()
	if !done {
		t.Fatalf("task should be done")
	}
	if !errors.Is(err, ErrTaskPanicked) {
		t.Fatalf("err=%v want ErrTaskPanicked", err)
	}

	// the worker survives the panic
	next, ok := Spawn(p, func() (int, error) { return 7, nil })
	if !ok {
		t.Fatalf("spawn after panic rejected")
	}
	<-next.Done()
	if v, done, err := next.Poll(); !done || err != nil || v != 7 {
		t.Fatalf("poll=(%d,%v,%v) want (7,true,nil)", v, done, err)
	}
}

func TestTask_PollBeforeDone(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Close()
	release := make(chan struct{})
	task, ok := Spawn(p, func() (string, error) { <-release; return "x", nil })
	if !ok {
		t.Fatalf("spawn rejected")
	}
	if _, done, _ := task.Poll(); done {
		t.Fatalf("task reported done while blocked")
	}
	close(release)
	<-task.Done()
	if v, done, _ := task.Poll(); !done || v != "x" {
		t.Fatalf("poll=(%q,%v)", v, done)
	}
}
