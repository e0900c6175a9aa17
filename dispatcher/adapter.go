package dispatcher

import (
	"encoding/json"
	"reflect"

	"github.com/AlexCasual/packio/completion"
)

const incompatibleArguments = "Incompatible arguments"

var errorType = reflect.TypeOf((*error)(nil)).Elem()
var completionHandlerType = reflect.TypeOf((*completion.Handler)(nil))

// decodeArgs converts params into reflect.Values matching in, reporting
// false if the arity or any element's type is incompatible. A codec decode
// already produced Go-native values (int64/uint64/float64 from the packed
// dialect, json.Number from the JSON dialect, string, bool, []any, maps,
// nil); decodeArgs additionally allows numeric conversion to the declared
// type (e.g. int64 or float64 -> int) the same way the original's
// msgpack::object::as<T>() conversion does.
func decodeArgs(params []any, in []reflect.Type) ([]reflect.Value, bool) {
	if len(params) != len(in) {
		return nil, false
	}
	args := make([]reflect.Value, len(in))
	for i, t := range in {
		v, ok := convert(params[i], t)
		if !ok {
			return nil, false
		}
		args[i] = v
	}
	return args, true
}

// convert attempts to produce a reflect.Value of type t from the decoded
// wire value v, covering the values a codec's decode step can hand back
// (json.Number, int64/uint64/float64, string, bool, nil, []any, map).
func convert(v any, t reflect.Type) (reflect.Value, bool) {
	if v == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
			return reflect.Zero(t), true
		default:
			return reflect.Value{}, false
		}
	}

	if n, ok := v.(json.Number); ok {
		return convertNumber(n, t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, true
	}
	if rv.Type().ConvertibleTo(t) {
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64, reflect.String, reflect.Bool:
			if rv.Kind() == reflect.String && t.Kind() != reflect.String {
				return reflect.Value{}, false // never coerce strings into numerics
			}
			return rv.Convert(t), true
		}
	}
	if t.Kind() == reflect.Interface && rv.Type().Implements(t) {
		return rv, true
	}
	return reflect.Value{}, false
}

// convertNumber parses a json.Number (produced by the JSON codec's
// UseNumber decoding) into the declared parameter type, the JSON-dialect
// equivalent of the packed dialect's msgpack integer/float widening.
func convertNumber(n json.Number, t reflect.Type) (reflect.Value, bool) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := n.Int64()
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(i).Convert(t), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(i).Convert(t), true
	case reflect.Float32, reflect.Float64:
		f, err := n.Float64()
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(f).Convert(t), true
	case reflect.Interface:
		f, err := n.Float64()
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(f), true
	default:
		return reflect.Value{}, false
	}
}

// buildResult turns a sync handler's return values (zero, one, or a
// (value, error) pair) into a completion reply.
func buildResult(results []reflect.Value, reply *completion.Handler) {
	if reply == nil {
		return
	}
	switch len(results) {
	case 0:
		reply.Complete(nil)
	case 1:
		if results[0].Type() == errorType {
			if err, _ := results[0].Interface().(error); err != nil {
				reply.SetError(err.Error())
				return
			}
			reply.Complete(nil)
			return
		}
		reply.Complete(results[0].Interface())
	default:
		last := results[len(results)-1]
		if last.Type() == errorType {
			if err, _ := last.Interface().(error); err != nil {
				reply.SetError(err.Error())
				return
			}
		}
		reply.Complete(results[0].Interface())
	}
}

// wrapSync reflects over fct's signature and returns a Func performing
// argument decoding, invocation, and reply construction, matching
// dispatcher::wrap_sync's arity check ("keep this check otherwise the
// unpacker may silently drop arguments") and type_error -> "Incompatible
// arguments" translation.
func wrapSync(fct any) Func {
	fv := reflect.ValueOf(fct)
	ft := fv.Type()
	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}

	return func(params []any, reply *completion.Handler) {
		args, ok := decodeArgs(params, in)
		if !ok {
			if reply != nil {
				reply.SetError(incompatibleArguments)
			}
			return
		}
		results := fv.Call(args)
		buildResult(results, reply)
	}
}

// wrapAsync reflects over fct's signature, which must take a
// *completion.Handler as its first parameter and is responsible for
// calling Complete/SetError on it itself, possibly asynchronously. The
// remaining parameters are decoded exactly like a sync handler's.
func wrapAsync(fct any) Func {
	fv := reflect.ValueOf(fct)
	ft := fv.Type()
	if ft.NumIn() == 0 || ft.In(0) != completionHandlerType {
		panic("dispatcher: async handler's first parameter must be *completion.Handler")
	}
	in := make([]reflect.Type, ft.NumIn()-1)
	for i := range in {
		in[i] = ft.In(i + 1)
	}

	return func(params []any, reply *completion.Handler) {
		args, ok := decodeArgs(params, in)
		if !ok {
			if reply != nil {
				reply.SetError(incompatibleArguments)
			}
			return
		}
		callArgs := make([]reflect.Value, 0, len(args)+1)
		callArgs = append(callArgs, reflect.ValueOf(reply))
		callArgs = append(callArgs, args...)
		fv.Call(callArgs)
	}
}

// wrapCoro reflects over fct like wrapSync, but runs the call on its own
// goroutine and reports the eventual result/error once it returns — the Go
// substitute for awaiting a lazily-resumable computation on an executor.
func wrapCoro(fct any) Func {
	fv := reflect.ValueOf(fct)
	ft := fv.Type()
	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}

	return func(params []any, reply *completion.Handler) {
		args, ok := decodeArgs(params, in)
		if !ok {
			if reply != nil {
				reply.SetError(incompatibleArguments)
			}
			return
		}
		go func() {
			results := fv.Call(args)
			buildResult(results, reply)
		}()
	}
}
