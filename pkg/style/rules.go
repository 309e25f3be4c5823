package style

import "slices"

// Field identifies which descriptor a rule reads.
type Field int

const (
	FieldLength Field = iota
	FieldVolume
	FieldDirection
	FieldTexture
	FieldStyle
)

func (f Field) String() string {
	switch f {
	case FieldLength:
		return "length"
	case FieldVolume:
		return "volume"
	case FieldDirection:
		return "direction"
	case FieldTexture:
		return "texture"
	case FieldStyle:
		return "style"
	default:
		return "unknown"
	}
}

func (d Descriptors) field(f Field) string {
	switch f {
	case FieldLength:
		return d.Length
	case FieldVolume:
		return d.Volume
	case FieldDirection:
		return d.Direction
	case FieldTexture:
		return d.Texture
	case FieldStyle:
		return d.Style
	}
	return ""
}

// Rule maps one descriptor value to a parameter contribution.
type Rule struct {
	Field Field
	Name  string
	// Match reports whether the normalized tokens of the field select this rule.
	Match func(tokens []string) bool
	// Apply composes the contribution into p.
	Apply func(p *Parameters)
}

// anyOf matches when any token equals one of words.
func anyOf(words ...string) func([]string) bool {
	return func(tokens []string) bool {
		for _, t := range tokens {
			if slices.Contains(words, t) {
				return true
			}
		}
		return false
	}
}

// Rules is evaluated top to bottom. Fields are visited in table order and
// within a field the first matching rule wins, so more specific values are
// listed before the values they contain ("very-short" before "short").
// Length assigns height; volume and texture multiply; direction assigns
// spikiness; style text applies small tweaks on top.
var Rules = []Rule{
	{FieldLength, "very-short", anyOf("very-short", "buzz", "shaved"), func(p *Parameters) { p.Height = 0.6 }},
	{FieldLength, "very-long", anyOf("very-long"), func(p *Parameters) { p.Height = 1.55 }},
	{FieldLength, "short", anyOf("short"), func(p *Parameters) { p.Height = 0.8 }},
	{FieldLength, "long", anyOf("long"), func(p *Parameters) { p.Height = 1.4 }},
	{FieldLength, "medium", anyOf("medium"), func(p *Parameters) { p.Height = 1.0 }},

	{FieldVolume, "very-high", anyOf("very-high"), func(p *Parameters) {
		p.Width *= 1.35
		p.Density *= 1.35
		p.Height *= 1.3
	}},
	{FieldVolume, "flat", anyOf("flat"), func(p *Parameters) {
		p.Width *= 0.9
		p.Density *= 0.85
		p.Height *= 0.85
	}},
	{FieldVolume, "low", anyOf("low", "thin"), func(p *Parameters) {
		p.Width *= 0.95
		p.Density *= 0.92
		p.Height *= 0.93
	}},
	{FieldVolume, "high", anyOf("high", "thick"), func(p *Parameters) {
		p.Width *= 1.25
		p.Density *= 1.25
		p.Height *= 1.2
	}},
	{FieldVolume, "medium", anyOf("medium"), func(*Parameters) {}},

	{FieldDirection, "down", anyOf("down", "flat"), func(p *Parameters) { p.Spikiness = -0.3 }},
	{FieldDirection, "up", anyOf("up", "spiky"), func(p *Parameters) { p.Spikiness = 0.5 }},
	{FieldDirection, "messy", anyOf("messy"), func(p *Parameters) {
		p.Spikiness = 0.25
		p.Density *= 1.1
	}},
	{FieldDirection, "neutral", anyOf("neutral", "side", "back"), func(p *Parameters) { p.Spikiness = 0 }},

	{FieldTexture, "very-curly", anyOf("very-curly", "coily", "kinky"), func(p *Parameters) {
		p.Width *= 1.25
		p.Density *= 1.3
		p.Height *= 0.9
	}},
	{FieldTexture, "curly", anyOf("curly"), func(p *Parameters) {
		p.Width *= 1.15
		p.Density *= 1.2
	}},
	{FieldTexture, "wavy", anyOf("wavy"), func(p *Parameters) {
		p.Width *= 1.08
		p.Density *= 1.1
	}},
	{FieldTexture, "straight", anyOf("straight"), func(*Parameters) {}},

	{FieldStyle, "mohawk", containsWord("mohawk", "fauxhawk"), func(p *Parameters) {
		p.Width *= 0.85
		p.Spikiness += 0.15
	}},
	{FieldStyle, "afro", containsWord("afro"), func(p *Parameters) {
		p.Width *= 1.15
		p.Height *= 1.1
	}},
	{FieldStyle, "tied", containsWord("bun", "ponytail", "tied", "braid", "braided"), func(p *Parameters) {
		p.Width *= 0.9
		p.Height *= 0.9
	}},
	{FieldStyle, "slicked", containsWord("slicked", "sleek", "gelled"), func(p *Parameters) {
		p.Spikiness -= 0.1
		p.Density *= 0.95
	}},
}

// containsWord matches free text containing any of ws.
func containsWord(ws ...string) func([]string) bool {
	return func(tokens []string) bool {
		for _, t := range tokens {
			for _, w := range words(t) {
				if slices.Contains(ws, w) {
					return true
				}
			}
		}
		return false
	}
}

// Match returns the names of the rules that fire for d, in evaluation order.
func Match(d Descriptors) []string {
	var fired []string
	evaluate(d, func(r Rule) { fired = append(fired, r.Field.String()+":"+r.Name) })
	return fired
}

// FromDescriptors composes rule contributions onto neutral parameters and
// clamps the result. Unrecognized values contribute nothing.
func FromDescriptors(d Descriptors) Parameters {
	p := Neutral()
	evaluate(d, func(r Rule) { r.Apply(&p) })
	return p.Clamp()
}

func evaluate(d Descriptors, fn func(Rule)) {
	done := map[Field]bool{}
	cache := map[Field][]string{}
	for _, r := range Rules {
		if done[r.Field] {
			continue
		}
		toks, ok := cache[r.Field]
		if !ok {
			toks = tokens(d.field(r.Field))
			cache[r.Field] = toks
		}
		if len(toks) == 0 || !r.Match(toks) {
			continue
		}
		fn(r)
		done[r.Field] = true
	}
}
