// Package platform classifies the host operating system and the process
// termination strategy that applies to it.
package platform

import "runtime"

// Kind identifies an operating system family.
type Kind int

const (
	Unknown Kind = iota
	Linux
	Mac
	Windows
	Solaris
	BSD
)

// String returns the lowercase name of the platform.
func (k Kind) String() string {
	switch k {
	case Linux:
		return "linux"
	case Mac:
		return "mac"
	case Windows:
		return "windows"
	case Solaris:
		return "solaris"
	case BSD:
		return "bsd"
	default:
		return "unknown"
	}
}

// IsUnix reports whether the platform supports POSIX signals and process groups.
func (k Kind) IsUnix() bool {
	switch k {
	case Linux, Mac, Solaris, BSD:
		return true
	default:
		return false
	}
}

// Escalation is the strategy used to stop a running process.
type Escalation int

const (
	// Terminate kills the process outright.
	Terminate Escalation = iota
	// SignalThenKill sends SIGTERM to the process group, then SIGKILL after a grace period.
	SignalThenKill
)

func (e Escalation) String() string {
	if e == SignalThenKill {
		return "signal-then-kill"
	}
	return "terminate"
}

// Escalation returns the destroy strategy for the platform.
func (k Kind) Escalation() Escalation {
	if k.IsUnix() {
		return SignalThenKill
	}
	return Terminate
}

// Detect returns the platform the binary is running on.
func Detect() Kind {
	return FromGOOS(runtime.GOOS)
}

// FromGOOS maps a GOOS value to a platform Kind.
func FromGOOS(goos string) Kind {
	switch goos {
	case "linux", "android":
		return Linux
	case "darwin", "ios":
		return Mac
	case "windows":
		return Windows
	case "solaris", "illumos":
		return Solaris
	case "freebsd", "openbsd", "netbsd", "dragonfly":
		return BSD
	default:
		return Unknown
	}
}
