package vm

import "unsafe"

// ProxyObject is an exotic object forwarding to target through handler traps.
// Revocation drops the handler and sets the revoked flag. The target stays so
// typeof still sees a callable. The revoke function holds the proxy, never
// the other way round.
type ProxyObject struct {
	PlainObject
	target  Value
	handler Value
	revoked bool
}

// NewProxy creates a proxy. Callers validate that target and handler are objects.
func NewProxy(target, handler Value) Value {
	p := &ProxyObject{target: target, handler: handler}
	p.init(Null)
	return Value{typ: TypeProxy, obj: unsafe.Pointer(p)}
}

func (p *ProxyObject) Target() Value   { return p.target }
func (p *ProxyObject) Handler() Value  { return p.handler }
func (p *ProxyObject) IsRevoked() bool { return p.revoked }

// Revoke drops the handler. Revoking twice is a no-op.
func (p *ProxyObject) Revoke() {
	if p.revoked {
		return
	}
	p.revoked = true
	p.handler = Null
}
