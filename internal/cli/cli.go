// Package cli parses command-line arguments into a dispatchable command
// (SPEC_FULL §2): pflag replaces the ad hoc os.Args switch the original
// daemon used.
package cli

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// Command identifies one subcommand.
type Command string

const (
	CommandRun     Command = "run"
	CommandDoctor  Command = "doctor"
	CommandDevices Command = "devices"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandDoctor:  {},
	CommandDevices: {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Parsed is the result of parsing argv.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
}

// Parse interprets argv (excluding the program name) into a Parsed command.
func Parse(args []string) (Parsed, error) {
	fs := flag.NewFlagSet("audiostreamer", flag.ContinueOnError)
	fs.Usage = func() {} // caller renders help text itself
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false) // flags must precede the command

	configPath := fs.String("config", "", "config file path")
	showHelp := fs.BoolP("help", "h", false, "show help")
	showVersion := fs.Bool("version", false, "show version")

	if err := fs.Parse(args); err != nil {
		return Parsed{}, err
	}

	parsed := Parsed{ConfigPath: *configPath}

	if *showHelp {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
		return parsed, nil
	}
	if *showVersion {
		parsed.Command = CommandVersion
		return parsed, nil
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return Parsed{Command: CommandHelp, ShowHelp: true}, nil
	}
	if len(remaining) > 1 {
		return Parsed{}, fmt.Errorf("unexpected arguments after command %q", remaining[0])
	}

	cmd := Command(remaining[0])
	if _, ok := validCommands[cmd]; !ok {
		return Parsed{}, fmt.Errorf("unknown command: %s", remaining[0])
	}

	parsed.Command = cmd
	parsed.ShowHelp = cmd == CommandHelp
	return parsed, nil
}

// HelpText renders the usage banner for binaryName.
func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  run       Start the capture/transmit/supervisor pipeline daemon
  doctor    Run configuration and environment readiness checks
  devices   List available PulseAudio capture sources
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/audiostreamer/config.yaml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
