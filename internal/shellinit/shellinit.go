// Package shellinit provides the snippets that make a shell report its
// prompt, command lifecycle and working directory through OSC 133 and
// OSC 1337, the sequences oscwatch understands.
package shellinit

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedShell is returned for shells without an integration script.
var ErrUnsupportedShell = errors.New("unsupported shell")

const bashScript = `# oscwatch shell integration (bash)
if [ -z "$__oscwatch_installed" ]; then
__oscwatch_installed=1
__oscwatch_ran=
__oscwatch_at_prompt=
__oscwatch_in_prompt=
__oscwatch_status=0

# Runs first in PROMPT_COMMAND so $? is still the command's status.
__oscwatch_prompt() {
    __oscwatch_status=$?
    __oscwatch_in_prompt=1
    if [ -n "$__oscwatch_ran" ]; then
        printf '\033]133;D;%s\007' "$__oscwatch_status"
    fi
    __oscwatch_ran=
    return $__oscwatch_status
}

# Runs last in PROMPT_COMMAND, after any hooks the user already had.
__oscwatch_prompt_done() {
    printf '\033]1337;CurrentDir=%s\007' "$PWD"
    printf '\033]133;A\007'
    __oscwatch_in_prompt=
    __oscwatch_at_prompt=1
    return $__oscwatch_status
}

__oscwatch_preexec() {
    [ -n "$COMP_LINE" ] && return
    [ -n "$__oscwatch_in_prompt" ] && return
    case "$BASH_COMMAND" in __oscwatch_prompt*) return ;; esac
    if [ -n "$__oscwatch_at_prompt" ]; then
        __oscwatch_at_prompt=
        __oscwatch_ran=1
        printf '\033]133;C\007'
    fi
}

trap '__oscwatch_preexec' DEBUG
PROMPT_COMMAND="__oscwatch_prompt${PROMPT_COMMAND:+; $PROMPT_COMMAND}; __oscwatch_prompt_done"
PS1="${PS1}\[\033]133;B\007\]"
fi
`

const zshScript = `# oscwatch shell integration (zsh)
if [[ -z $__oscwatch_installed ]]; then
__oscwatch_installed=1
autoload -Uz add-zsh-hook

__oscwatch_precmd() {
    local ec=$?
    if [[ -n $__oscwatch_ran ]]; then
        printf '\033]133;D;%s\007' "$ec"
    fi
    __oscwatch_ran=
    printf '\033]1337;CurrentDir=%s\007' "$PWD"
    printf '\033]133;A\007'
}

__oscwatch_preexec() {
    __oscwatch_ran=1
    printf '\033]133;C\007'
}

add-zsh-hook precmd __oscwatch_precmd
add-zsh-hook preexec __oscwatch_preexec
PS1="${PS1}%{$(printf '\033]133;B\007')%}"
fi
`

// fish has no hook between drawing the prompt and reading input, so 133;B
// is not reported.
const fishScript = `# oscwatch shell integration (fish)
if not set -q __oscwatch_installed
    set -g __oscwatch_installed 1

    function __oscwatch_prompt --on-event fish_prompt
        printf '\033]1337;CurrentDir=%s\007' "$PWD"
        printf '\033]133;A\007'
    end

    function __oscwatch_preexec --on-event fish_preexec
        printf '\033]133;C\007'
    end

    function __oscwatch_postexec --on-event fish_postexec
        printf '\033]133;D;%s\007' $status
    end
end
`

var scripts = map[string]string{
	"bash": bashScript,
	"zsh":  zshScript,
	"fish": fishScript,
}

// Supported lists the shells Script knows, sorted.
func Supported() []string {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Script returns the integration snippet for shell, given as a name ("zsh")
// or a path ("/usr/bin/zsh").
func Script(shell string) (string, error) {
	name := strings.TrimSpace(filepath.Base(shell))
	name = strings.TrimPrefix(name, "-") // login shells show up as -bash
	s, ok := scripts[name]
	if !ok {
		return "", fmt.Errorf("%w %q (supported: %s)", ErrUnsupportedShell, shell, strings.Join(Supported(), ", "))
	}
	return s, nil
}
