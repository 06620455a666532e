package gputune

import (
	"math/rand"
	"time"
)

// randSource backs the genetic engine's candidate generation and
// crossover. Package-level so tests can reseed it deterministically.
var randSource = rand.New(rand.NewSource(time.Now().UnixNano()))

var randUint64 = func() uint64 {
	return randSource.Uint64()
}

var randIntn = func(n int) int {
	return randSource.Intn(n)
}
