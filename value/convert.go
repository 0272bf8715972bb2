package value

import "github.com/hupe1980/qibridge/core"

// ToBool reads a "b" value.
func (v *Value) ToBool() (bool, error) { return Get[bool](v) }

// ToInt32 reads an "i" value.
func (v *Value) ToInt32() (int32, error) { return Get[int32](v) }

// ToInt64 reads an "l" value.
func (v *Value) ToInt64() (int64, error) { return Get[int64](v) }

// ToUInt32 reads an "I" value.
func (v *Value) ToUInt32() (uint32, error) { return Get[uint32](v) }

// ToFloat32 reads an "f" value.
func (v *Value) ToFloat32() (float32, error) { return Get[float32](v) }

// ToFloat64 reads a "d" value.
func (v *Value) ToFloat64() (float64, error) { return Get[float64](v) }

// ToString reads an "s" value.
func (v *Value) ToString() (string, error) { return Get[string](v) }

// ToBytes reads an "r" value. The result is a copy.
func (v *Value) ToBytes() ([]byte, error) { return Get[[]byte](v) }

// ToObjectRef reads an "o" value.
func (v *Value) ToObjectRef() (core.ObjectRef, error) { return Get[core.ObjectRef](v) }

// ToStrings reads an "[s]" value.
func (v *Value) ToStrings() ([]string, error) { return Get[[]string](v) }
