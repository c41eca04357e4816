package syscall

import (
	"fmt"
)

// Class of a system call, taken from the trap number.
type Class uint8

const (
	CLASS_YIELD            = Class(0)
	CLASS_SUBSCRIBE        = Class(1)
	CLASS_COMMAND          = Class(2)
	CLASS_READ_WRITE_ALLOW = Class(3)
	CLASS_READ_ONLY_ALLOW  = Class(4)
	CLASS_MEMOP            = Class(5)
	CLASS_EXIT             = Class(6)
)

var _class_names = [...]string{
	CLASS_YIELD:            "yield",
	CLASS_SUBSCRIBE:        "subscribe",
	CLASS_COMMAND:          "command",
	CLASS_READ_WRITE_ALLOW: "allow-rw",
	CLASS_READ_ONLY_ALLOW:  "allow-ro",
	CLASS_MEMOP:            "memop",
	CLASS_EXIT:             "exit",
}

func (class Class) String() string {
	if int(class) >= len(_class_names) {
		return "unknown"
	}
	return _class_names[class]
}

const (
	YIELD_NO_WAIT = 0 // Return at once; run pending upcalls if any.
	YIELD_WAIT    = 1 // Wait for an upcall.

	EXIT_TERMINATE = 0 // Stop the process.
	EXIT_RESTART   = 1 // Restart the process.
)

// Syscall is a decoded system call. The meaning of the arguments depends on
// the class:
//
//	yield       which, param
//	subscribe   driver, subscribe number, upcall entry, application data
//	command     driver, command number, arg1, arg2
//	allow       driver, allow number, address, length
//	memop       operation, argument
//	exit        which, completion code
type Syscall struct {
	Class Class
	Args  [4]uint32
}

// Decode builds a system call from the trap number and the argument
// registers r0..r3.
func Decode(number uint8, r [4]uint32) (sc Syscall, err error) {
	class := Class(number)
	if class > CLASS_EXIT {
		err = ErrClass(number)
		return
	}

	sc = Syscall{Class: class, Args: r}
	return
}

func (sc Syscall) Driver() uint32 { return sc.Args[0] }
func (sc Syscall) Minor() uint32  { return sc.Args[1] }

func (sc Syscall) String() string {
	switch sc.Class {
	case CLASS_YIELD, CLASS_MEMOP, CLASS_EXIT:
		return fmt.Sprintf("%v(%d, 0x%x)", sc.Class, sc.Args[0], sc.Args[1])
	}
	return fmt.Sprintf("%v(0x%x, %d, 0x%x, 0x%x)", sc.Class, sc.Args[0], sc.Args[1], sc.Args[2], sc.Args[3])
}
