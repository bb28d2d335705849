package dice

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics if n <= 0 or crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// FixedSource replays a scripted sequence of die faces. It is used to replay a
// recorded battle and to pin rolls in tests.
//
// Faces are 1-based die values; Intn(n) returns face-1 so that a die of n sides
// rolls exactly the scripted face.
type FixedSource struct {
	mu    sync.Mutex
	faces []int
	next  int
}

// NewFixedSource returns a FixedSource that yields faces in order.
//
// Precondition: every face must be >= 1.
func NewFixedSource(faces ...int) *FixedSource {
	return &FixedSource{faces: append([]int(nil), faces...)}
}

// Push appends more faces to the script.
func (f *FixedSource) Push(faces ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces = append(f.faces, faces...)
}

// Intn returns the next scripted face minus one.
//
// Precondition: the scripted face must be in [1, n]; an exhausted script yields 0.
func (f *FixedSource) Intn(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.faces) {
		return 0
	}
	face := f.faces[f.next]
	f.next++
	if face < 1 || face > n {
		panic(fmt.Sprintf("dice: scripted face %d out of range for d%d", face, n))
	}
	return face - 1
}

// Remaining reports how many scripted faces have not been consumed.
func (f *FixedSource) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.faces) - f.next
}
