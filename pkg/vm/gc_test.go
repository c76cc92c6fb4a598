package vm

import (
	"bytes"
	"testing"
)

// gcSoundnessPrograms exercises arithmetic, closures, classes, and methods — the
// categories spec §8's GC-soundness property names explicitly.
var gcSoundnessPrograms = []string{
	"print 1 + 2 * 3 - 4 / 2;",
	`
		func mk() {
			let count = 0;
			func inc() { count = count + 1; return count; }
			return inc;
		}
		let c1 = mk();
		let c2 = mk();
		print c1();
		print c1();
		print c2();
	`,
	`
		class Pair {
			Pair(a, b) { this.a = a; this.b = b; }
			sum() { return this.a + this.b; }
		}
		let p1 = Pair(1, 2);
		let p2 = Pair(10, 20);
		print p1.sum();
		print p2.sum();
	`,
	`
		let words = "";
		for (let i = 0; i < 20; i = i + 1) {
			words = words + "x";
		}
		print words;
	`,
}

// TestGCStressModeMatchesNormalRun checks spec §8's GC soundness
// property: running with a collection forced before every allocation
// must yield output identical to a normal run.
func TestGCStressModeMatchesNormalRun(t *testing.T) {
	for i, src := range gcSoundnessPrograms {
		var normal, stressed bytes.Buffer

		vmNormal := New(&normal)
		if err := vmNormal.Interpret(src); err != nil {
			t.Fatalf("program %d: normal run failed: %v", i, err)
		}

		vmStress := New(&stressed)
		vmStress.SetGCStressMode(true)
		if err := vmStress.Interpret(src); err != nil {
			t.Fatalf("program %d: stress run failed: %v", i, err)
		}

		if normal.String() != stressed.String() {
			t.Errorf("program %d: stress output %q != normal output %q", i, stressed.String(), normal.String())
		}
	}
}

// TestGCReclaimsUnreachableObjects allocates a few hundred short-lived
// strings (well under the default nextGC threshold, so no automatic
// collection runs), then forces a collection via the gc() native and
// checks bytesAllocated actually shrank —
// i.e. the sweep phase is doing real work, not just running a no-op
// cycle.
func TestGCReclaimsUnreachableObjects(t *testing.T) {
	var out bytes.Buffer
	machine := New(&out)
	src := `
		let keep = "kept";
		for (let i = 0; i < 200; i = i + 1) {
			let garbage = "throwaway" + str(i);
		}
		gc();
		print keep;
	`
	if err := machine.Interpret(src); err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if out.String() != "kept\n" {
		t.Fatalf("got %q, want %q", out.String(), "kept\n")
	}
	// Every "throwaway"+str(i) string is unreachable once its loop
	// iteration's scope pops, so the explicit gc() call should have left
	// far less live data than the 200+ intermediate strings allocated.
	if machine.bytesAllocated >= int64(200)*approxSize {
		t.Errorf("bytesAllocated = %d after gc(), expected most garbage collected", machine.bytesAllocated)
	}
}

// TestOpenUpvalueOrderingStaysDescending checks spec §8's "the
// open-upvalue list addresses strictly decrease along next" invariant
// directly against captureUpvalue, capturing out of order to confirm
// the list is kept sorted rather than merely insertion-ordered.
func TestOpenUpvalueOrderingStaysDescending(t *testing.T) {
	machine := New(&bytes.Buffer{})
	machine.captureUpvalue(5)
	machine.captureUpvalue(1)
	machine.captureUpvalue(8)
	machine.captureUpvalue(3)

	var slots []int
	for u := machine.openUpvalues; u != nil; u = u.NextOpen {
		slots = append(slots, u.Slot)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 distinct open upvalues, got %d (%v)", len(slots), slots)
	}
	for i := 1; i < len(slots); i++ {
		if slots[i-1] <= slots[i] {
			t.Fatalf("open-upvalue list not strictly descending: %v", slots)
		}
	}

	// Capturing the same slot twice must return the existing upvalue,
	// not insert a duplicate.
	again := machine.captureUpvalue(3)
	if again.Slot != 3 {
		t.Fatalf("re-capture of slot 3 returned slot %d", again.Slot)
	}
	count := 0
	for u := machine.openUpvalues; u != nil; u = u.NextOpen {
		count++
	}
	if count != 4 {
		t.Fatalf("re-capturing an existing slot should not grow the list, got %d entries", count)
	}
}
