package uart

import (
	"fmt"
	"sync"
)

// Access is the sharing mode a session requests for its device.
type Access int

const (
	// AccessShared lets any number of shared sessions use the device.
	AccessShared Access = iota
	// AccessExclusive requires the device to be otherwise unclaimed.
	AccessExclusive
)

func (a Access) String() string {
	switch a {
	case AccessShared:
		return "shared"
	case AccessExclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// ParseAccess parses a policy "access" attribute.
func ParseAccess(s string) (Access, error) {
	switch s {
	case "", "shared":
		return AccessShared, nil
	case "exclusive":
		return AccessExclusive, nil
	default:
		return AccessShared, fmt.Errorf("%w: access %q", ErrInvalidAttribute, s)
	}
}

type claim struct {
	holders   int
	exclusive bool
}

// Claims is the device ownership table.
type Claims struct {
	mu      sync.Mutex
	devices map[uint]*claim
}

// NewClaims creates an empty ownership table.
func NewClaims() *Claims {
	return &Claims{devices: make(map[uint]*claim)}
}

// Acquire claims device index in the given mode. The returned release func is
// safe to call more than once.
func (c *Claims) Acquire(index uint, mode Access) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.devices[index]
	if ok && cl.holders > 0 {
		if cl.exclusive || mode == AccessExclusive {
			return nil, fmt.Errorf("%w: uart %d has %d holder(s)", ErrDeviceBusy, index, cl.holders)
		}
	}
	if !ok {
		cl = &claim{}
		c.devices[index] = cl
	}
	cl.holders++
	cl.exclusive = mode == AccessExclusive

	var once sync.Once
	return func() {
		once.Do(func() { c.release(index) })
	}, nil
}

func (c *Claims) release(index uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.devices[index]
	if !ok {
		return
	}
	cl.holders--
	if cl.holders <= 0 {
		delete(c.devices, index)
	}
}

// Holders returns the number of live claims on a device.
func (c *Claims) Holders(index uint) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.devices[index]; ok {
		return cl.holders
	}
	return 0
}

// Exclusive reports whether a device is held exclusively.
func (c *Claims) Exclusive(index uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.devices[index]
	return ok && cl.exclusive
}
