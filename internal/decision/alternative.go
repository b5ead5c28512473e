package decision

import (
	"strings"
)

// Suggestion is a safer substitute for a rejected call. Command is empty
// when no safe substitute exists; Note explains either way.
type Suggestion struct {
	Command string
	Note    string
}

func (e *Engine) suggest(command string, args []string) (Suggestion, bool) {
	for _, sub := range e.substitutions {
		if !sub.matches(command) {
			continue
		}
		targets := operands(args)
		switch sub.Action {
		case ActionQuarantine:
			if len(targets) == 0 {
				return Suggestion{Note: sub.Note}, true
			}
			dir := shellQuote(e.quarantineDir)
			return Suggestion{
				Command: "mkdir -p " + dir + " && mv " + joinQuoted(targets) + " " + dir + "/",
				Note:    sub.Note,
			}, true
		case ActionNone:
			return Suggestion{Note: sub.Note}, true
		case ActionReplace:
			cmd := strings.ReplaceAll(sub.Template, "{{targets}}", joinQuoted(targets))
			return Suggestion{Command: strings.TrimSpace(cmd), Note: sub.Note}, true
		case ActionRewriteArg:
			rewritten := make([]string, len(args))
			hit := false
			for i, a := range args {
				if a == sub.WhenArg {
					a = sub.ReplaceWith
					hit = true
				}
				rewritten[i] = a
			}
			if !hit {
				continue
			}
			return Suggestion{Command: command + " " + joinQuoted(rewritten), Note: sub.Note}, true
		}
	}
	return Suggestion{}, false
}

// operands drops option arguments, keeping everything after "--".
func operands(args []string) []string {
	var out []string
	rest := false
	for _, a := range args {
		switch {
		case rest:
			out = append(out, a)
		case a == "--":
			rest = true
		case strings.HasPrefix(a, "-") && a != "-":
		default:
			out = append(out, a)
		}
	}
	return out
}

func joinQuoted(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// shellQuote single-quotes s unless it consists only of safe characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
