package cli

import (
	"reflect"

	"github.com/alecthomas/kong"
)

// mapper builds a Kong mapper that pops one value and parses it.
func mapper[T any](placeholder string, parse func(string) (T, error)) kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto(placeholder, &s); err != nil {
			return err
		}
		v, err := parse(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(v))
		return nil
	}
}

func priorityMapper() kong.MapperFunc  { return mapper("priority", ParsePriority) }
func etherTypeMapper() kong.MapperFunc { return mapper("ethertype", ParseEtherType) }
func vlanIDMapper() kong.MapperFunc    { return mapper("vlan-id", ParseVlanID) }
func frameMapper() kong.MapperFunc     { return mapper("hex", ParseFrame) }
