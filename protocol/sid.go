package protocol

import "math/rand"

// SidGenerator produces subscription ids. Constructors that can default the
// sid accept one so tests can supply deterministic ids; production wiring
// uses RandomSid.
type SidGenerator func() string

// SidLength is the length of a generated subscription id.
const SidLength = 12

const sidAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomSid returns a fresh subscription id: SidLength characters drawn
// uniformly from the alphanumeric alphabet.
//
// It draws from the process-wide math/rand source, which is internally
// locked, so concurrent calls are safe. Ids only need to be unique within
// one connection; at 62^12 possibilities collisions are not a practical
// concern.
func RandomSid() string {
	b := make([]byte, SidLength)
	for i := range b {
		b[i] = sidAlphabet[rand.Intn(len(sidAlphabet))]
	}

	return string(b)
}
