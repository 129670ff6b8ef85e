package chat

import (
	"sort"
	"strings"
)

var emotes = map[string]string{
	"/shrug":      "¯\\_(ツ)_/¯",
	"/lenny":      "( ͡° ͜ʖ ͡°)",
	"/tableflip":  "(╯°□°）╯︵ ┻━┻",
	"/unflip":     "┬─┬ノ( º _ ºノ)",
	"/bear":       "ʕ •ᴥ•ʔ",
	"/disapprove": "ಠ_ಠ",
}

func helpText() string {
	names := make([]string, 0, len(emotes)+1)
	for name := range emotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return "Commands: /w username message, " + strings.Join(names, ", ")
}

// applyCommand interprets a leading slash command. reply is set for commands
// answered privately by the server; rewritten is set for emotes that are
// broadcast. Unknown commands are not handled and go out verbatim.
func applyCommand(text string) (reply, rewritten string, handled bool) {
	cmd, rest, _ := strings.Cut(text, " ")

	if cmd == "/help" {
		return helpText(), "", true
	}

	emote, ok := emotes[cmd]
	if !ok {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", emote, true
	}
	return "", rest + " " + emote, true
}
