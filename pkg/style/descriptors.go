package style

import (
	"bufio"
	"errors"
	"strings"
)

// ErrNoDescriptors is returned when classifier text carries no descriptor lines.
var ErrNoDescriptors = errors.New("no hair descriptors found")

// Descriptors are the categorical outputs of a hair classifier.
//
//	Length    very-short, short, medium, long, very-long
//	Volume    flat, low, medium, high, very-high
//	Direction down, neutral, up, messy
//	Texture   straight, wavy, curly, very-curly
//	Style     free text, e.g. "short spiky"
type Descriptors struct {
	Length    string `json:"length,omitempty"`
	Volume    string `json:"volume,omitempty"`
	Direction string `json:"direction,omitempty"`
	Texture   string `json:"texture,omitempty"`
	Style     string `json:"style,omitempty"`
}

// Empty reports whether no field is set.
func (d Descriptors) Empty() bool {
	return strings.TrimSpace(d.Length+d.Volume+d.Direction+d.Texture+d.Style) == ""
}

// DefaultDescriptors are used for lines missing from classifier output.
func DefaultDescriptors() Descriptors {
	return Descriptors{
		Length:    "medium",
		Volume:    "medium",
		Direction: "neutral",
		Texture:   "straight",
		Style:     "medium hair",
	}
}

// ParseDescriptors reads classifier output of the form
//
//	LENGTH: long
//	VOLUME: high
//	DIRECTION: up/spiky
//	TEXTURE: curly
//	STYLE: voluminous curls
//
// Keys are case-insensitive and lines may appear in any order. Missing keys
// take DefaultDescriptors values. Text with none of the keys returns
// ErrNoDescriptors.
func ParseDescriptors(text string) (Descriptors, error) {
	d := DefaultDescriptors()
	found := false

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "* ")
		if value == "" {
			continue
		}
		switch strings.ToUpper(strings.Trim(strings.TrimSpace(key), "*-# ")) {
		case "LENGTH":
			d.Length = value
		case "VOLUME":
			d.Volume = value
		case "DIRECTION":
			d.Direction = value
		case "TEXTURE":
			d.Texture = value
		case "STYLE":
			d.Style = value
		default:
			continue
		}
		found = true
	}
	if err := sc.Err(); err != nil {
		return Descriptors{}, err
	}
	if !found {
		return Descriptors{}, ErrNoDescriptors
	}
	return d, nil
}

// tokens normalizes a descriptor value into comparable words.
// "Very Long" becomes [very-long], "up/spiky" becomes [up spiky].
func tokens(value string) []string {
	value = strings.ToLower(strings.TrimSpace(value))
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool {
		return r == '/' || r == ',' || r == ';' || r == '|'
	}) {
		part = strings.Join(strings.Fields(strings.ReplaceAll(part, "_", " ")), "-")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// words splits free text into lowercase words.
func words(value string) []string {
	return strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
}
