package chat

import "strings"

// Command is a slash command extracted from an inbound message.
type Command struct {
	Name string
	Args []string
	Msg  *Message
}

// ArgText returns the raw argument portion of the command, joined back into a
// single string. Command grammars that contain free text parse this instead
// of Args.
func (c *Command) ArgText() string {
	return strings.Join(c.Args, " ")
}

// ParseCommand extracts a slash command from a message. A "/cmd@BotName"
// suffix is stripped so group-addressed commands resolve to the same route.
func ParseCommand(m *Message) (*Command, bool) {
	text := m.Content()
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	name = strings.ToLower(name)
	if name == "" {
		return nil, false
	}
	return &Command{Name: name, Args: fields[1:], Msg: m}, true
}
