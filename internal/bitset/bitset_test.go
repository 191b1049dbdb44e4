package bitset

import (
	"sync"
	"testing"
)

func TestSetTest(t *testing.T) {
	b := New(130)
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(129)
	for _, i := range []uint64{0, 63, 64, 129} {
		if !b.Test(i) {
			t.Errorf("bit %d should be set", i)
		}
	}
	if b.Test(1) || b.Test(65) {
		t.Error("unset bits reported as set")
	}
}

func TestConcurrentSet(t *testing.T) {
	b := New(1000)
	var wg sync.WaitGroup
	for i := uint64(0); i < 1000; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			b.Set(i)
		}(i)
	}
	wg.Wait()
	for i := uint64(0); i < 1000; i++ {
		if !b.Test(i) {
			t.Fatalf("bit %d lost under concurrent Set", i)
		}
	}
}

func TestOr(t *testing.T) {
	a := New(64)
	b := New(64)
	a.Set(1)
	b.Set(2)
	a.Or(b)
	if !a.Test(1) || !a.Test(2) {
		t.Fatal("Or did not fold both bits in")
	}
}

func TestFromWordsRoundTrip(t *testing.T) {
	a := New(200)
	a.Set(5)
	a.Set(199)
	b := FromWords(a.Size(), a.Words())
	if !b.Test(5) || !b.Test(199) {
		t.Fatal("FromWords did not preserve bits")
	}
}
