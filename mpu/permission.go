package mpu

// Permission is the access granted to unprivileged code inside a region.
type Permission uint8

const (
	PERM_NONE Permission = iota
	PERM_READ
	PERM_READ_WRITE
	PERM_READ_EXECUTE
	PERM_READ_WRITE_EXECUTE
)

// CanRead reports whether the permission allows loads.
func (perm Permission) CanRead() bool {
	return perm != PERM_NONE
}

// CanWrite reports whether the permission allows stores.
func (perm Permission) CanWrite() bool {
	return perm == PERM_READ_WRITE || perm == PERM_READ_WRITE_EXECUTE
}

// CanExecute reports whether the permission allows instruction fetch.
func (perm Permission) CanExecute() bool {
	return perm == PERM_READ_EXECUTE || perm == PERM_READ_WRITE_EXECUTE
}

// Covers reports whether perm grants every access that want requires.
func (perm Permission) Covers(want Permission) bool {
	if want.CanRead() && !perm.CanRead() {
		return false
	}
	if want.CanWrite() && !perm.CanWrite() {
		return false
	}
	if want.CanExecute() && !perm.CanExecute() {
		return false
	}
	return true
}

func (perm Permission) String() string {
	switch perm {
	case PERM_NONE:
		return "---"
	case PERM_READ:
		return "r--"
	case PERM_READ_WRITE:
		return "rw-"
	case PERM_READ_EXECUTE:
		return "r-x"
	case PERM_READ_WRITE_EXECUTE:
		return "rwx"
	}
	return "???"
}
