// Package sandbox compiles generated JavaScript into invocable units and
// runs them in a fresh ECMAScript runtime whose only globals are the style
// registry API.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/livetemplate/cssplay/internal/registry"
)

// DefaultTimeout bounds a single unit invocation.
const DefaultTimeout = 2 * time.Second

// ElementSheet is the stylesheet id used by el(selector).addRule(...).
const ElementSheet = "el"

// ErrTimeout is returned when a unit runs longer than the sandbox timeout.
var ErrTimeout = errors.New("execution timed out")

// CompileError wraps a syntax error in generated code.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string { return e.Err.Error() }
func (e *CompileError) Unwrap() error { return e.Err }

// RuntimeError is an exception thrown while running a unit.
type RuntimeError struct {
	Message string
	Stack   string
	Err     error
}

func (e *RuntimeError) Error() string { return e.Message }
func (e *RuntimeError) Unwrap() error { return e.Err }

// Sandbox holds the execution limits applied to every unit it compiles.
type Sandbox struct {
	timeout time.Duration
	debug   bool
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithTimeout sets the per-invocation time limit. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) { s.timeout = d }
}

// WithDebug logs console.log output from executed code.
func WithDebug(debug bool) Option {
	return func(s *Sandbox) { s.debug = debug }
}

// New creates a sandbox.
func New(opts ...Option) *Sandbox {
	s := &Sandbox{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the per-invocation time limit.
func (s *Sandbox) Timeout() time.Duration { return s.timeout }

// Unit is compiled code ready to be invoked any number of times.
type Unit struct {
	name string
	prog *goja.Program
	box  *Sandbox
}

// Compile builds a unit from code. The code becomes the body of a function,
// so it never shares lexical scope with the caller and may use a top-level
// return.
func (s *Sandbox) Compile(name, code string) (*Unit, error) {
	prog, err := goja.Compile(name, "(function () {\n"+code+"\n})", false)
	if err != nil {
		return nil, &CompileError{Err: err}
	}
	return &Unit{name: name, prog: prog, box: s}, nil
}

// Trace is what a run observed besides the registry API.
type Trace struct {
	// Nondeterministic is set once the code reads the clock or Math.random,
	// so its output may differ between runs of the same unit.
	Nondeterministic bool
}

// Run invokes the unit in a fresh runtime. Its only observable effect is
// the rules it registers into reg.
func (u *Unit) Run(ctx context.Context, reg *registry.Registry) error {
	_, err := u.Execute(ctx, reg)
	return err
}

// Execute is Run that also reports the run's Trace.
func (u *Unit) Execute(ctx context.Context, reg *registry.Registry) (Trace, error) {
	var tr Trace
	if u.box.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.box.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return tr, u.box.interrupted(err)
	}

	vm := goja.New()
	install(vm, reg, u.box.debug)
	if err := traceClock(vm, &tr); err != nil {
		return tr, fmt.Errorf("failed to install runtime: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	v, err := vm.RunProgram(u.prog)
	if err != nil {
		return tr, u.box.runError(err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return tr, fmt.Errorf("unit %s is not callable", u.name)
	}
	if _, err := fn(goja.Undefined()); err != nil {
		return tr, u.box.runError(err)
	}
	return tr, nil
}

// clockPrelude wraps Math.random and the Date constructor so reads of either
// call mark. new Date(x) with arguments is deterministic and left unmarked.
var clockPrelude = goja.MustCompile("prelude.js", `(function (mark) {
	var random = Math.random;
	Math.random = function () { mark(); return random(); };
	var now = Date.now;
	Date.now = function () { mark(); return now.call(Date); };
	Date = new Proxy(Date, {
		apply: function (target, self, args) { mark(); return Reflect.apply(target, self, args); },
		construct: function (target, args) {
			if (args.length === 0) { mark(); }
			return Reflect.construct(target, args);
		}
	});
})`, false)

func traceClock(vm *goja.Runtime, tr *Trace) error {
	v, err := vm.RunProgram(clockPrelude)
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return errors.New("prelude is not callable")
	}
	_, err = fn(goja.Undefined(), vm.ToValue(func() { tr.Nondeterministic = true }))
	return err
}

func (s *Sandbox) runError(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause, ok := ie.Value().(error); ok {
			return s.interrupted(cause)
		}
		return fmt.Errorf("execution interrupted: %v", ie.Value())
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		msg := ex.Error()
		if v := ex.Value(); v != nil {
			msg = v.String()
		}
		return &RuntimeError{Message: msg, Stack: ex.String(), Err: err}
	}
	return err
}

func (s *Sandbox) interrupted(cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
	}
	return fmt.Errorf("execution interrupted: %w", cause)
}

// install binds the runtime API: cssx, el and console.
func install(vm *goja.Runtime, reg *registry.Registry, debug bool) {
	cssx := vm.NewObject()
	cssx.Set("stylesheet", func(call goja.FunctionCall) goja.Value {
		sheet := wrapSheet(vm, reg.Stylesheet(call.Argument(0).String()))
		invoke(call.Argument(1), sheet)
		return sheet
	})
	cssx.Set("nest", func(parent, child string) string {
		return registry.NestSelector(parent, child)
	})
	cssx.Set("clear", func() {
		reg.ClearAll()
	})
	vm.Set("cssx", cssx)

	vm.Set("el", func(call goja.FunctionCall) goja.Value {
		sel := call.Argument(0).String()
		obj := vm.NewObject()
		obj.Set("addRule", func(c goja.FunctionCall) goja.Value {
			reg.Stylesheet(ElementSheet).Add(sel, declarations(vm, c.Argument(0)))
			return obj
		})
		return obj
	})

	console := vm.NewObject()
	console.Set("log", func(call goja.FunctionCall) goja.Value {
		if debug {
			args := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = a.String()
			}
			log.Printf("[Sandbox] console.log: %s", strings.Join(args, " "))
		}
		return goja.Undefined()
	})
	vm.Set("console", console)
}

func wrapSheet(vm *goja.Runtime, s *registry.Stylesheet) *goja.Object {
	obj := vm.NewObject()
	obj.Set("id", s.ID)
	obj.Set("add", func(call goja.FunctionCall) goja.Value {
		s.Add(call.Argument(0).String(), declarations(vm, call.Argument(1)))
		return obj
	})
	obj.Set("raw", func(call goja.FunctionCall) goja.Value {
		s.Raw(call.Argument(0).String())
		return obj
	})
	obj.Set("nested", func(call goja.FunctionCall) goja.Value {
		child := wrapSheet(vm, s.Nested(call.Argument(0).String()))
		invoke(call.Argument(1), child)
		return child
	})
	return obj
}

// invoke calls fn(arg) when fn is a function, rethrowing its exception.
func invoke(fn goja.Value, arg goja.Value) {
	call, ok := goja.AssertFunction(fn)
	if !ok {
		return
	}
	if _, err := call(goja.Undefined(), arg); err != nil {
		panic(err)
	}
}

// declarations exports a rules object in key insertion order.
func declarations(vm *goja.Runtime, v goja.Value) []registry.Declaration {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		panic(vm.NewTypeError("rules must be an object"))
	}
	obj := v.ToObject(vm)
	keys := obj.Keys()
	decls := make([]registry.Declaration, 0, len(keys))
	for _, k := range keys {
		decls = append(decls, registry.Declaration{Property: k, Value: export(obj.Get(k))})
	}
	return decls
}

func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}
