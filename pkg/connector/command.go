package connector

import (
	"sort"
	"strings"

	"github.com/mensylisir/remoteify/pkg/linux"
)

// shellEscape single-quotes s for a POSIX shell.
func shellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// joinArgv quotes every element exactly once and joins them with spaces.
func joinArgv(argv ...string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellEscape(arg)
	}
	return strings.Join(quoted, " ")
}

// buildCommand renders a process configuration as the command string sent in
// an exec request. Environment is not included; see Session.OpenExec.
func buildCommand(config *linux.ProcessConfiguration) string {
	argv := append([]string{config.Program}, config.Args...)
	cmd := joinArgv(argv...)
	if config.WorkingDir != "" {
		cmd = "cd " + shellEscape(config.WorkingDir) + " && exec " + cmd
	}
	return cmd
}

// inlineEnvCommand wraps command so env is set by the remote `env` utility.
func inlineEnvCommand(command string, env map[string]string) string {
	var b strings.Builder
	b.WriteString("exec env")
	for _, name := range sortedKeys(env) {
		b.WriteByte(' ')
		b.WriteString(shellEscape(name + "=" + env[name]))
	}
	b.WriteString(" sh -c ")
	b.WriteString(shellEscape(command))
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
