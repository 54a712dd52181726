package utils

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError carries a recovered panic value and the stack it was raised on.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func recovered(r any) *PanicError {
	stack := string(debug.Stack())
	slog.Error("Recovered from panic", "panic", r, "stack", stack)
	return &PanicError{Value: r, StackTrace: stack}
}

// RecoverAsError turns a panic into the error result of the enclosing
// function. Call it deferred:
//
//	func poll(ctx context.Context) (err error) {
//	    defer RecoverAsError(&err)
//	    ...
//	}
func RecoverAsError(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = recovered(r)
	}
}

// RecoverWithCallback recovers a panic and hands it to callback. Use it in
// functions without an error result, such as timer callbacks.
func RecoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		err := recovered(r)
		if callback != nil {
			callback(err)
		}
	}
}

// SafeGo runs fn in a goroutine; a panic is logged and passed to onError.
func SafeGo(fn func(), onError func(error)) {
	go func() {
		defer RecoverWithCallback(onError)
		fn()
	}()
}
