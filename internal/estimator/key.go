package estimator

import (
	"fmt"

	"github.com/pharmbio/cellpaint/internal/command"
)

// KeyForCommand maps a bare device command (Robotarm, Wash, Disp, Incu) to
// the (source, arg) pair its duration is estimated under, or ok=false for
// every other Kind (nothing to time). Mirrors original_source/timings.py's
// override keys: a biotek TestCommunications call has no path suffix,
// every other mode is keyed "<mode> <path>", and an incubator action is
// keyed by its action name directly ("put", "get", "get_climate").
func KeyForCommand(cmd command.Command) (source Source, arg string, ok bool) {
	switch cmd.Kind {
	case command.KindRobotarm:
		return SourceRobotarm, cmd.Program, true
	case command.KindWash:
		return SourceWash, biotekArg(cmd.Mode, cmd.ProtocolPath), true
	case command.KindDisp:
		return SourceDisp, biotekArg(cmd.Mode, cmd.ProtocolPath), true
	case command.KindIncu:
		return SourceIncu, string(cmd.IncuAction), true
	default:
		return "", "", false
	}
}

func biotekArg(mode command.BiotekMode, path string) string {
	if mode == command.ModeTestCommunications {
		return string(mode)
	}
	return fmt.Sprintf("%s %s", mode, path)
}
