package rbtree

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"
	"testing"
)

// checkInvariants verifies ordering, parent links, the red rule and equal
// black height on every root-to-leaf path.
func checkInvariants[K cmp.Ordered, V any](t *testing.T, tr *Tree[K, V]) {
	t.Helper()
	if tr.root.color != black {
		t.Fatal("root is red")
	}
	if tr.leaf.color != black {
		t.Fatal("sentinel is red")
	}
	count := 0
	var walk func(n *node[K, V]) int
	walk = func(n *node[K, V]) int {
		if n == tr.leaf {
			return 1
		}
		count++
		if n.left != tr.leaf {
			if n.left.parent != n {
				t.Fatalf("broken parent link under %v", n.key)
			}
			if !(n.left.key < n.key) {
				t.Fatalf("left child %v not below %v", n.left.key, n.key)
			}
		}
		if n.right != tr.leaf {
			if n.right.parent != n {
				t.Fatalf("broken parent link under %v", n.key)
			}
			if !(n.right.key > n.key) {
				t.Fatalf("right child %v not above %v", n.right.key, n.key)
			}
		}
		if n.color == red && (n.left.color == red || n.right.color == red) {
			t.Fatalf("red node %v has a red child", n.key)
		}
		lh := walk(n.left)
		rh := walk(n.right)
		if lh != rh {
			t.Fatalf("black height mismatch at %v: %d vs %d", n.key, lh, rh)
		}
		if n.color == black {
			lh++
		}
		return lh
	}
	walk(tr.root)
	if count != tr.Len() {
		t.Fatalf("Len = %d, counted %d nodes", tr.Len(), count)
	}
}

func keys[K cmp.Ordered, V any](tr *Tree[K, V]) []K {
	var out []K
	for k := range tr.All() {
		out = append(out, k)
	}
	return out
}

func TestInsertFind(t *testing.T) {
	tr := New[float64, string]()
	for _, k := range []float64{50, 20, 80, 10, 30, 70, 90, 25} {
		if !tr.Insert(k, fmt.Sprint(k)) {
			t.Fatalf("Insert(%v) reported duplicate", k)
		}
		checkInvariants(t, tr)
	}
	v, ok := tr.Find(30)
	if !ok || v != "30" {
		t.Errorf("Find(30) = %q, %v", v, ok)
	}
	if _, ok := tr.Find(31); ok {
		t.Error("Find(31) should miss")
	}
	if got := keys(tr); !slices.IsSorted(got) || len(got) != 8 {
		t.Errorf("keys = %v", got)
	}
}

func TestDuplicateInsertKeepsFirst(t *testing.T) {
	tr := New[float64, string]()
	tr.Insert(10, "first")
	if tr.Insert(10, "second") {
		t.Fatal("duplicate insert should report false")
	}
	v, _ := tr.Find(10)
	if v != "first" {
		t.Errorf("value = %q, want first", v)
	}
	if tr.Len() != 1 {
		t.Errorf("Len = %d", tr.Len())
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	tr := New[float64, int]()
	if tr.Remove(1) {
		t.Fatal("remove on empty tree should report false")
	}
	tr.Insert(1, 1)
	if tr.Remove(2) {
		t.Fatal("remove of absent key should report false")
	}
	checkInvariants(t, tr)
	if tr.Len() != 1 {
		t.Errorf("Len = %d", tr.Len())
	}
}

func TestRemoveToEmpty(t *testing.T) {
	tr := New[int, int]()
	for i := 0; i < 32; i++ {
		tr.Insert(i, i)
	}
	for i := 0; i < 32; i++ {
		if !tr.Remove(i) {
			t.Fatalf("Remove(%d) missed", i)
		}
		checkInvariants(t, tr)
	}
	if tr.Len() != 0 || len(keys(tr)) != 0 {
		t.Fatalf("tree not empty: %v", keys(tr))
	}
	tr.Insert(7, 7)
	checkInvariants(t, tr)
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := New[float64, int]()
	ref := map[float64]int{}

	for step := 0; step < 4000; step++ {
		k := float64(rng.Intn(300)) / 2
		if rng.Intn(3) == 0 {
			_, had := ref[k]
			if tr.Remove(k) != had {
				t.Fatalf("step %d: Remove(%v) disagreed with reference", step, k)
			}
			delete(ref, k)
		} else {
			_, had := ref[k]
			if tr.Insert(k, step) == had {
				t.Fatalf("step %d: Insert(%v) disagreed with reference", step, k)
			}
			if !had {
				ref[k] = step
			}
		}
		checkInvariants(t, tr)

		got := keys(tr)
		for i := 1; i < len(got); i++ {
			if got[i-1] >= got[i] {
				t.Fatalf("step %d: traversal not strictly ascending: %v", step, got)
			}
		}
		if len(got) != len(ref) {
			t.Fatalf("step %d: %d keys, reference has %d", step, len(got), len(ref))
		}
	}
}

func TestBackwardAndEarlyStop(t *testing.T) {
	tr := New[int, int]()
	for _, k := range []int{3, 1, 2, 5, 4} {
		tr.Insert(k, k*10)
	}

	var desc []int
	for k := range tr.Backward() {
		desc = append(desc, k)
	}
	if !slices.Equal(desc, []int{5, 4, 3, 2, 1}) {
		t.Errorf("Backward = %v", desc)
	}

	var firstTwo []int
	for v := range tr.Values() {
		firstTwo = append(firstTwo, v)
		if len(firstTwo) == 2 {
			break
		}
	}
	if !slices.Equal(firstTwo, []int{10, 20}) {
		t.Errorf("Values early stop = %v", firstTwo)
	}

	// Restartable: a second traversal sees everything again.
	if got := keys(tr); len(got) != 5 {
		t.Errorf("second traversal = %v", got)
	}
}
