package worker

// Connectivity reports whether a network path to the remote exists.
//
// Subscribe returns a channel receiving each new state and a function that
// ends the subscription.
type Connectivity interface {
	Online() bool
	Subscribe() (<-chan bool, func())
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

func (alwaysOnline) Subscribe() (<-chan bool, func()) {
	return make(chan bool), func() {}
}

// AlwaysOnline is a Connectivity that never gates.
var AlwaysOnline Connectivity = alwaysOnline{}
