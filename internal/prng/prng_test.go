// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package prng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seedOf(b byte) [32]byte {
	var s [32]byte
	for i := range s {
		s[i] = b
	}
	return s
}

func TestFill_Deterministic(t *testing.T) {
	is := assert.New(t)

	s1, err := New(seedOf(7))
	is.NoError(err)
	s2, err := New(seedOf(7))
	is.NoError(err)

	buf1 := make([]byte, 500) // spans multiple internal buffer refills
	buf2 := make([]byte, 500)
	s1.Fill(buf1)
	s2.Fill(buf2)

	is.Equal(buf1, buf2)
}

func TestFill_DifferentSeedsDiffer(t *testing.T) {
	is := assert.New(t)

	s1, _ := New(seedOf(1))
	s2, _ := New(seedOf(2))

	buf1 := make([]byte, 64)
	buf2 := make([]byte, 64)
	s1.Fill(buf1)
	s2.Fill(buf2)

	is.NotEqual(buf1, buf2)
}

func TestNextUint64Bounded_WithinRange(t *testing.T) {
	is := assert.New(t)

	s, _ := New(seedOf(42))
	for i := 0; i < 10000; i++ {
		v := s.NextUint64Bounded(5)
		is.LessOrEqual(v, uint64(5))
	}
}

func TestNextUint64Bounded_MaxUint64(t *testing.T) {
	is := assert.New(t)

	s, _ := New(seedOf(9))
	// Should not loop forever and should not panic shifting by 64.
	v := s.NextUint64Bounded(^uint64(0))
	is.True(v >= 0)
}

func TestNextUint64Bounded_ZeroRange(t *testing.T) {
	is := assert.New(t)

	s, _ := New(seedOf(1))
	for i := 0; i < 10; i++ {
		is.Equal(uint64(0), s.NextUint64Bounded(0))
	}
}

func TestShuffle_Deterministic(t *testing.T) {
	is := assert.New(t)

	mk := func() []int {
		v := make([]int, 50)
		for i := range v {
			v[i] = i
		}
		return v
	}

	s1, _ := New(seedOf(99))
	s2, _ := New(seedOf(99))

	a := mk()
	b := mk()
	Shuffle(s1, a)
	Shuffle(s2, b)

	is.Equal(a, b, "equal seed must produce equal permutation")
}

func TestShuffle_IsBijection(t *testing.T) {
	is := assert.New(t)

	v := make([]int, 200)
	for i := range v {
		v[i] = i
	}

	s, _ := New(seedOf(3))
	Shuffle(s, v)

	seen := make(map[int]bool, len(v))
	for _, x := range v {
		is.False(seen[x], "value %d appeared more than once after shuffle", x)
		seen[x] = true
	}
	is.Len(seen, len(v))
}

func TestShuffle_DifferentSeedsDiffer(t *testing.T) {
	is := assert.New(t)

	mk := func() []int {
		v := make([]int, 64)
		for i := range v {
			v[i] = i
		}
		return v
	}

	s1, _ := New(seedOf(1))
	s2, _ := New(seedOf(2))

	a, b := mk(), mk()
	Shuffle(s1, a)
	Shuffle(s2, b)

	is.NotEqual(a, b)
}
