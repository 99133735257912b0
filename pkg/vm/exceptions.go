package vm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an Exception by the constructor of its error object.
type ErrorKind uint8

const (
	KindError ErrorKind = iota
	KindTypeError
	KindRangeError
	KindSyntaxError
	// KindThrown marks an arbitrary value thrown by script or a synthesized
	// throw completion.
	KindThrown
)

func (k ErrorKind) String() string {
	switch k {
	case KindTypeError:
		return "TypeError"
	case KindRangeError:
		return "RangeError"
	case KindSyntaxError:
		return "SyntaxError"
	case KindThrown:
		return "Thrown"
	default:
		return "Error"
	}
}

// Exception is a script-observable abrupt completion travelling as a Go
// error. Value is the thrown value (an error object for the named kinds).
type Exception struct {
	Kind    ErrorKind
	Message string
	Value   Value
}

func (e *Exception) Error() string {
	if e.Kind == KindThrown {
		return "Uncaught " + e.Value.Inspect()
	}
	return e.Kind.String() + ": " + e.Message
}

// ThrowValue wraps an arbitrary value as a throw completion.
func ThrowValue(v Value) *Exception {
	return &Exception{Kind: KindThrown, Value: v}
}

// AsException extracts the Exception carried by err, if any.
func AsException(err error) (*Exception, bool) {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

// IsKind reports whether err is an Exception of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ex, ok := AsException(err)
	return ok && ex.Kind == kind
}

// ThrownValue returns the script value carried by err, or false when err is
// not an Exception.
func ThrownValue(err error) (Value, bool) {
	if ex, ok := AsException(err); ok {
		return ex.Value, true
	}
	return Undefined, false
}

func (vm *VM) newError(kind ErrorKind, message string) *Exception {
	proto := Null
	if vm.realm != nil {
		proto = vm.realm.ErrorPrototype(kind)
	}
	obj := NewObject(proto).AsPlainObject()
	obj.SetOwnNonEnumerable("message", NewString(message))
	return &Exception{Kind: kind, Message: message, Value: NewValueFromPlainObject(obj)}
}

// NewTypeError constructs a TypeError exception for builtin helpers to return.
func (vm *VM) NewTypeError(format string, args ...any) error {
	return vm.newError(KindTypeError, fmt.Sprintf(format, args...))
}

// NewRangeError constructs a RangeError exception.
func (vm *VM) NewRangeError(format string, args ...any) error {
	return vm.newError(KindRangeError, fmt.Sprintf(format, args...))
}

// NewSyntaxError constructs a SyntaxError exception.
func (vm *VM) NewSyntaxError(format string, args ...any) error {
	return vm.newError(KindSyntaxError, fmt.Sprintf(format, args...))
}

// IncompatibleReceiver reports a builtin invoked on a receiver of the wrong
// brand or type.
func (vm *VM) IncompatibleReceiver(builtin string, receiver Value) error {
	return vm.NewTypeError("Method %s called on incompatible receiver %s", builtin, receiver.Inspect())
}

func (vm *VM) NotAConstructor(v Value) error {
	return vm.NewTypeError("%s is not a constructor", describe(v))
}

func (vm *VM) NotCallable(v Value) error {
	return vm.NewTypeError("%s is not a function", describe(v))
}

func describe(v Value) string {
	if v.IsNativeFunction() {
		if name := v.AsNativeFunction().Name; name != "" {
			return name
		}
		return "anonymous"
	}
	return v.Inspect()
}
