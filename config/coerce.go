package config

import (
	"reflect"

	"github.com/lunixbochs/argjoy"

	"github.com/hyperboot/hyper/errs"
)

// valueCodec is a codec func in the same shape usercorn's kernel
// argument codecs use (see go/kernel/common/codec.go's commonArgCodec):
// given a destination pointer and the raw values to assign from, either
// fill in the pointer or report argjoy.NoMatch so the next codec in the
// chain gets a turn.
type valueCodec func(out interface{}, vals []interface{}) error

// coercer is this package's argjoy.Argjoy instance, registered once
// with every Value codec below, the same shape go/kernel/common/
// kernel.go's initKernel builds one per Kernel for (there: k.Argjoy;
// here: a single package-wide instance, since config.Value's codec set
// never varies per caller).
var coercer = argjoy.NewArgjoy()

func init() {
	for _, c := range []valueCodec{boolCodec, unsignedCodec, signedCodec, stringCodec, scopeCodec} {
		coercer.Register(argjoy.CodecFunc(c))
	}
}

func boolCodec(out interface{}, vals []interface{}) error {
	v := vals[0].(Value)
	p, ok := out.(*bool)
	if !ok || !v.IsBool() {
		return argjoy.NoMatch
	}
	*p = v.Bool
	return nil
}

func unsignedCodec(out interface{}, vals []interface{}) error {
	v := vals[0].(Value)
	p, ok := out.(*uint64)
	if !ok || !v.IsUnsigned() {
		return argjoy.NoMatch
	}
	*p = v.Unsigned
	return nil
}

func signedCodec(out interface{}, vals []interface{}) error {
	v := vals[0].(Value)
	p, ok := out.(*int64)
	if !ok || !v.IsSigned() {
		return argjoy.NoMatch
	}
	*p = v.Signed
	return nil
}

func stringCodec(out interface{}, vals []interface{}) error {
	v := vals[0].(Value)
	p, ok := out.(*string)
	if !ok || !v.IsString() {
		return argjoy.NoMatch
	}
	*p = v.String
	return nil
}

func scopeCodec(out interface{}, vals []interface{}) error {
	v := vals[0].(Value)
	p, ok := out.(*Scope)
	if !ok || !v.IsObject() {
		return argjoy.NoMatch
	}
	*p = Scope(v.CfgOff)
	return nil
}

// Coerce assigns v's payload into out, which must be one of *bool,
// *uint64, *int64, *string or *Scope matching v's Type. It is the single
// place the typed Get/GetFirst helpers (see lookup.go) convert a raw
// Value into the caller's requested Go type; it is exported so code
// outside the package can perform the same conversion. The actual
// reflective coercion is
// done by coercer.Convert, the same argjoy entry point
// go/kernel/common/syscall.go's Syscall.Call uses to turn raw syscall
// register values into a handler's argument types.
func Coerce(v Value, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errs.New(errs.ConfigSemantic, "config: Coerce destination must be a non-nil pointer")
	}
	converted, err := coercer.Convert([]reflect.Type{rv.Elem().Type()}, false, []interface{}{v})
	if err != nil {
		return err
	}
	rv.Elem().Set(converted[0])
	return nil
}
