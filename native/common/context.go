package common

// Context identifies who is calling a ledger entry point. Sender is the
// immediate caller. Origin is the account that initiated the outer request; a
// forwarding component sets it to the end buyer while acting as Sender.
type Context struct {
	Sender [20]byte
	Origin [20]byte
}

// Direct builds a context where the caller is also the origin.
func Direct(addr [20]byte) Context {
	return Context{Sender: addr, Origin: addr}
}

// OriginOrSender returns Origin when set, otherwise Sender.
func (c Context) OriginOrSender() [20]byte {
	if c.Origin != ([20]byte{}) {
		return c.Origin
	}
	return c.Sender
}
