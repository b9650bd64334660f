package process

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/mproc/internal/process/capture"
)

// Defaults applied by the Builder.
const (
	DefaultGracePeriod = 500 * time.Millisecond
	DefaultKillTimeout = 2 * time.Second
)

// LaunchSpec is the complete, resolved description of a process to launch.
// A ManagedProcess owns its own copy; changing a LaunchSpec after Build has
// no effect on processes already built from it.
type LaunchSpec struct {
	// Executable is the path or PATH-resolvable name of the program.
	Executable string
	// Args are passed verbatim, in order, without shell interpretation.
	Args []string
	// Dir is the working directory. Empty inherits the current directory.
	Dir string
	// Env overrides are merged onto the inherited environment; overrides win.
	Env map[string]string

	// ConsoleBufferMaxLines bounds the retained console lines.
	ConsoleBufferMaxLines int
	// FailOnNonZeroExit makes WaitForExit report non-success codes as errors.
	FailOnNonZeroExit bool
	// SuccessExitCodes lists the exit codes treated as success. Empty means {0}.
	SuccessExitCodes []int

	// Input, if set, is copied to the process's stdin.
	Input io.Reader

	// GracePeriod is the delay between the graceful termination signal and
	// the force-kill. Zero skips the graceful step.
	GracePeriod time.Duration
	// KillTimeout is how long to wait for the process to disappear after the
	// force-kill before giving up.
	KillTimeout time.Duration

	// LockFile, if set, is held exclusively while the process runs.
	LockFile string
	// Name is a short display name. Empty uses the executable base name.
	Name string
}

// clone returns a deep copy of s.
func (s LaunchSpec) clone() LaunchSpec {
	out := s
	out.Args = slices.Clone(s.Args)
	out.Env = maps.Clone(s.Env)
	out.SuccessExitCodes = slices.Clone(s.SuccessExitCodes)
	return out
}

// ShortName returns Name, or the base name of the executable.
func (s LaunchSpec) ShortName() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Executable)
}

// LongName describes the program, its arguments and working directory,
// for example "program /bin/sleep [30] (in working directory /tmp)".
func (s LaunchSpec) LongName() string {
	var sb strings.Builder
	sb.WriteString("program ")
	sb.WriteString(s.Executable)
	if len(s.Args) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(s.Args, ", "))
		sb.WriteString("]")
	}
	if s.Dir != "" {
		dir := s.Dir
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		fmt.Fprintf(&sb, " (in working directory %s)", dir)
	}
	return sb.String()
}

// IsSuccess reports whether code is one of the success exit codes.
func (s LaunchSpec) IsSuccess(code int) bool {
	if len(s.SuccessExitCodes) == 0 {
		return code == 0
	}
	return slices.Contains(s.SuccessExitCodes, code)
}

// Environ returns the environment for the child: os.Environ() with Env
// applied on top. Overridden keys are replaced in place; new keys are
// appended in sorted order.
func (s LaunchSpec) Environ() []string {
	return mergeEnv(os.Environ(), s.Env)
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			if !seen[key] {
				out = append(out, key+"="+v)
				seen[key] = true
			}
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

func (s LaunchSpec) withDefaults() LaunchSpec {
	if s.ConsoleBufferMaxLines <= 0 {
		s.ConsoleBufferMaxLines = capture.DefaultMaxLines
	}
	if len(s.SuccessExitCodes) == 0 {
		s.SuccessExitCodes = []int{0}
	}
	if s.KillTimeout <= 0 {
		s.KillTimeout = DefaultKillTimeout
	}
	return s
}
