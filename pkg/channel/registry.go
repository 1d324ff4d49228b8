// Package channel tracks which outputs of a 16-channel PWM controller are in use.
package channel

import "sync"

// NumChannels is the number of PWM outputs on one controller.
const NumChannels = 16

// Registry records which channels of one controller are claimed. Every servo
// driving the same controller must share the same Registry.
type Registry struct {
	lock    sync.Mutex
	claimed [NumChannels]bool
	claims  [NumChannels]uint64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// InRange reports whether index names a channel on the controller.
func InRange(index int) bool {
	return index >= 0 && index < NumChannels
}

// TryClaim marks the channel as in use. It returns false, leaving the registry
// untouched, if the index is out of range or the channel is already claimed.
func (r *Registry) TryClaim(index int) bool {
	if !InRange(index) {
		return false
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.claimed[index] {
		return false
	}
	r.claimed[index] = true
	r.claims[index]++
	return true
}

// Release frees the channel. Out of range indexes are ignored.
func (r *Registry) Release(index int) {
	if !InRange(index) {
		return
	}
	r.lock.Lock()
	r.claimed[index] = false
	r.lock.Unlock()
}

func (r *Registry) IsClaimed(index int) bool {
	if !InRange(index) {
		return false
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.claimed[index]
}

// Claims returns how many times the channel has been claimed. A holder that
// remembers the count at claim time can tell whether the channel was released
// and claimed again by someone else.
func (r *Registry) Claims(index int) uint64 {
	if !InRange(index) {
		return 0
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.claims[index]
}

// Claimed returns the claimed channel indexes in ascending order.
func (r *Registry) Claimed() []int {
	r.lock.Lock()
	defer r.lock.Unlock()
	var out []int
	for i, c := range r.claimed {
		if c {
			out = append(out, i)
		}
	}
	return out
}
