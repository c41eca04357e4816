package syscall

import (
	"errors"

	"github.com/ezrec/uproc/grant"
	"github.com/ezrec/uproc/memory"
	"github.com/ezrec/uproc/mpu"
	"github.com/ezrec/uproc/process"
)

// ErrorCode is the failure reason reported to a process.
type ErrorCode uint32

const (
	FAIL        = ErrorCode(1)  // Generic failure.
	BUSY        = ErrorCode(2)  // Underlying system is busy; retry.
	ALREADY     = ErrorCode(3)  // The state requested is already set.
	OFF         = ErrorCode(4)  // The component is powered down.
	RESERVE     = ErrorCode(5)  // Reservation required before use.
	INVAL       = ErrorCode(6)  // An invalid parameter was passed.
	SIZE        = ErrorCode(7)  // Parameter passed was too large.
	CANCEL      = ErrorCode(8)  // Operation canceled by a call.
	NOMEM       = ErrorCode(9)  // Memory required not available.
	NOSUPPORT   = ErrorCode(10) // Operation is not supported.
	NODEVICE    = ErrorCode(11) // Device is not available.
	UNINSTALLED = ErrorCode(12) // Device is not physically installed.
	NOACK       = ErrorCode(13) // Packet transmission not acknowledged.
)

var _error_code_names = [...]string{
	FAIL:        "FAIL",
	BUSY:        "BUSY",
	ALREADY:     "ALREADY",
	OFF:         "OFF",
	RESERVE:     "RESERVE",
	INVAL:       "INVAL",
	SIZE:        "SIZE",
	CANCEL:      "CANCEL",
	NOMEM:       "NOMEM",
	NOSUPPORT:   "NOSUPPORT",
	NODEVICE:    "NODEVICE",
	UNINSTALLED: "UNINSTALLED",
	NOACK:       "NOACK",
}

func (code ErrorCode) String() string {
	if code == 0 || int(code) >= len(_error_code_names) {
		return f("error %d", uint32(code))
	}
	return _error_code_names[code]
}

func (code ErrorCode) Error() string {
	return code.String()
}

// ToErrorCode converts a kernel error into the code reported to a process.
func ToErrorCode(err error) (code ErrorCode) {
	if errors.As(err, &code) {
		return
	}

	switch {
	case errors.Is(err, memory.ErrOutOfMemory), errors.Is(err, mpu.ErrHardwareLimit):
		code = NOMEM
	case errors.Is(err, memory.ErrOutOfBounds), errors.Is(err, memory.ErrAlignment):
		code = INVAL
	case errors.Is(err, memory.ErrBusy):
		code = BUSY
	case errors.Is(err, grant.ErrNoSlot), errors.Is(err, ErrNoDriver), errors.Is(err, process.ErrNoUpcall):
		code = NOSUPPORT
	default:
		code = FAIL
	}
	return
}
