package syscall

import (
	"fmt"
)

// Variant tags the layout of a return value in r0.
type Variant uint32

const (
	FAILURE             = Variant(0)
	FAILURE_U32         = Variant(1)
	FAILURE_U32_U32     = Variant(2)
	FAILURE_U64         = Variant(3)
	SUCCESS             = Variant(128)
	SUCCESS_U32         = Variant(129)
	SUCCESS_U32_U32     = Variant(130)
	SUCCESS_U64         = Variant(131)
	SUCCESS_U32_U32_U32 = Variant(132)
	SUCCESS_U64_U32     = Variant(133)
)

// CommandReturn is the result of a system call. It can only hold one of the
// shapes its constructors make.
type CommandReturn struct {
	variant Variant
	code    ErrorCode
	values  [3]uint32
}

func Success() CommandReturn {
	return CommandReturn{variant: SUCCESS}
}

func SuccessU32(a uint32) CommandReturn {
	return CommandReturn{variant: SUCCESS_U32, values: [3]uint32{a}}
}

func SuccessU32U32(a, b uint32) CommandReturn {
	return CommandReturn{variant: SUCCESS_U32_U32, values: [3]uint32{a, b}}
}

func SuccessU32U32U32(a, b, c uint32) CommandReturn {
	return CommandReturn{variant: SUCCESS_U32_U32_U32, values: [3]uint32{a, b, c}}
}

func SuccessU64(a uint64) CommandReturn {
	return CommandReturn{variant: SUCCESS_U64, values: [3]uint32{uint32(a), uint32(a >> 32)}}
}

func SuccessU64U32(a uint64, b uint32) CommandReturn {
	return CommandReturn{variant: SUCCESS_U64_U32, values: [3]uint32{uint32(a), uint32(a >> 32), b}}
}

func Failure(code ErrorCode) CommandReturn {
	return CommandReturn{variant: FAILURE, code: code}
}

func FailureU32(code ErrorCode, a uint32) CommandReturn {
	return CommandReturn{variant: FAILURE_U32, code: code, values: [3]uint32{a}}
}

func FailureU32U32(code ErrorCode, a, b uint32) CommandReturn {
	return CommandReturn{variant: FAILURE_U32_U32, code: code, values: [3]uint32{a, b}}
}

func FailureU64(code ErrorCode, a uint64) CommandReturn {
	return CommandReturn{variant: FAILURE_U64, code: code, values: [3]uint32{uint32(a), uint32(a >> 32)}}
}

// FailureOf reports err as a plain failure.
func FailureOf(err error) CommandReturn {
	return Failure(ToErrorCode(err))
}

// Variant returns the return value layout.
func (ret CommandReturn) Variant() Variant {
	return ret.variant
}

// IsSuccess reports whether the return is a success variant.
func (ret CommandReturn) IsSuccess() bool {
	return ret.variant >= SUCCESS
}

// ErrorCode returns the failure code, or zero for a success.
func (ret CommandReturn) ErrorCode() ErrorCode {
	return ret.code
}

// Values returns the payload words, 64-bit values low word first.
func (ret CommandReturn) Values() [3]uint32 {
	return ret.values
}

// Encode lays the return out in registers r0..r3. r0 holds the variant. For
// a failure r1 holds the error code and the payload follows in r2, r3.
func (ret CommandReturn) Encode() (r [4]uint32) {
	r[0] = uint32(ret.variant)
	if ret.IsSuccess() {
		copy(r[1:], ret.values[:])
	} else {
		r[1] = uint32(ret.code)
		copy(r[2:], ret.values[:2])
	}
	return
}

func (ret CommandReturn) String() string {
	r := ret.Encode()
	if ret.IsSuccess() {
		return fmt.Sprintf("success(%d, 0x%x, 0x%x, 0x%x)", r[0], r[1], r[2], r[3])
	}
	return fmt.Sprintf("failure(%v, 0x%x, 0x%x)", ret.code, r[2], r[3])
}
