package contour

// Category groups contours that share a retargeting rule.
type Category int

const (
	// Face covers jaw, cheeks, forehead, chin, temples and head shell.
	Face Category = iota
	Neck
	Eye
	Eyebrow
	Nose
	Mouth
	Hair
	Ear
)

func (c Category) String() string {
	switch c {
	case Face:
		return "face"
	case Neck:
		return "neck"
	case Eye:
		return "eye"
	case Eyebrow:
		return "eyebrow"
	case Nose:
		return "nose"
	case Mouth:
		return "mouth"
	case Hair:
		return "hair"
	case Ear:
		return "ear"
	default:
		return "unknown"
	}
}

// CategoryOf returns the category of a template contour name. Unknown
// names are treated as Face.
func CategoryOf(name string) Category {
	if r, ok := regionIndex[name]; ok {
		return regions[r].Category
	}
	return Face
}
