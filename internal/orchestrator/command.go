package orchestrator

import (
	"github.com/alessio/shellescape"
)

// BuildCommandLine renders program and args as one POSIX shell command line.
func BuildCommandLine(program string, args []string) string {
	words := make([]string, 0, len(args)+1)
	words = append(words, program)
	words = append(words, args...)
	return shellescape.QuoteCommand(words)
}
