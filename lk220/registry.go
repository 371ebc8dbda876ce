package lk220

import "github.com/puzpuzpuz/xsync/v3"

// controllers tracks open Controllers by port name. A serial device has a
// single owner; two Controllers multiplexed onto one port would interleave
// their half-duplex transactions and corrupt both.
var controllers = xsync.NewMapOf[string, *Controller]()

// registerController claims the port name for c. It reports false if the
// port is already owned by another Controller.
func registerController(name string, c *Controller) bool {
	_, loaded := controllers.LoadOrStore(name, c)

	return !loaded
}

// unregisterController releases the port name if it is still owned by c.
func unregisterController(name string, c *Controller) {
	if cur, ok := controllers.Load(name); ok && cur == c {
		controllers.Delete(name)
	}
}

// Lookup returns the open Controller owning the named port, if any.
func Lookup(portName string) (*Controller, bool) {
	return controllers.Load(portName)
}
