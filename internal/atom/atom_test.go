package atom

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
)

func TestIntern_EqualContentSharesIdentity(t *testing.T) {
	in := New(0)
	a := in.Intern("core::grass")
	// Build the second string at runtime so it does not share backing bytes.
	b := in.Intern(strings.Join([]string{"core", "grass"}, "::"))
	if a != b {
		t.Fatalf("expected identical atoms for equal content")
	}
	if a.String() != "core::grass" {
		t.Fatalf("String: got %q", a.String())
	}
	if c := in.Intern("core::stone"); c == a {
		t.Fatalf("distinct content must give distinct atoms")
	}
}

func TestIntern_AirIsPinned(t *testing.T) {
	in := New(0)
	if in.Air() != in.Intern(AirName) {
		t.Fatalf("air sentinel mismatch")
	}
	runtime.GC()
	runtime.GC()
	if in.Air() != in.Intern(AirName) {
		t.Fatalf("air sentinel lost after GC")
	}
}

func TestIntern_ConcurrentRaceHasSingleWinner(t *testing.T) {
	in := New(0)
	const workers = 32
	out := make([]Atom, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			out[i] = in.Intern(fmt.Sprintf("mod::%s", "ore"))
		}(i)
	}
	close(start)
	wg.Wait()
	for i := 1; i < workers; i++ {
		if out[i] != out[0] {
			t.Fatalf("worker %d got a different atom", i)
		}
	}
}

func TestIntern_HashStable(t *testing.T) {
	a := New(0).Intern("core::dirt")
	b := New(0).Intern("core::dirt")
	if a.Hash() != b.Hash() || a.Hash() == 0 {
		t.Fatalf("hash must depend on content only: %x %x", a.Hash(), b.Hash())
	}
}

func TestIntern_LiveAtomsSurviveCapacityPressure(t *testing.T) {
	in := New(shardCount) // one slot per shard
	keep := in.Intern("core::keep")
	for i := 0; i < 2000; i++ {
		in.Intern(fmt.Sprintf("tmp::%d", i))
	}
	runtime.GC()
	in.Sweep()
	if in.Intern("core::keep") != keep {
		t.Fatalf("live atom was evicted")
	}
	runtime.KeepAlive(keep)
}

func TestZeroAtom(t *testing.T) {
	var a Atom
	if !a.IsZero() || a.String() != "" || a.Hash() != 0 {
		t.Fatalf("zero atom should be empty")
	}
}
