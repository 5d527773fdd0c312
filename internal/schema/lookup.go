package schema

import "sort"

// ColorPair is a foreground/background pair used to render a category.
type ColorPair struct {
	Foreground string `json:"foreground"`
	Background string `json:"background"`
}

const (
	// DefaultIcon is used when a category icon key is unknown.
	DefaultIcon = "ic_label"
	// DefaultColor is used when a category color key is unknown.
	DefaultColor = "slate"
)

var icons = map[string]struct{}{
	"ic_label":    {},
	"ic_work":     {},
	"ic_home":     {},
	"ic_school":   {},
	"ic_shopping": {},
	"ic_fitness":  {},
	"ic_travel":   {},
	"ic_finance":  {},
	"ic_health":   {},
	"ic_music":    {},
	"ic_book":     {},
	"ic_code":     {},
}

var colors = map[string]ColorPair{
	"slate":  {Foreground: "#37474F", Background: "#ECEFF1"},
	"red":    {Foreground: "#C62828", Background: "#FFEBEE"},
	"orange": {Foreground: "#EF6C00", Background: "#FFF3E0"},
	"yellow": {Foreground: "#F9A825", Background: "#FFFDE7"},
	"green":  {Foreground: "#2E7D32", Background: "#E8F5E9"},
	"teal":   {Foreground: "#00695C", Background: "#E0F2F1"},
	"blue":   {Foreground: "#1565C0", Background: "#E3F2FD"},
	"indigo": {Foreground: "#283593", Background: "#E8EAF6"},
	"purple": {Foreground: "#6A1B9A", Background: "#F3E5F5"},
	"pink":   {Foreground: "#AD1457", Background: "#FCE4EC"},
}

// DefaultAvatars is the fixed set a new or avatar-less account picks from.
var DefaultAvatars = []string{
	"avatar:default_1",
	"avatar:default_2",
	"avatar:default_3",
	"avatar:default_4",
	"avatar:default_5",
	"avatar:default_6",
}

// ResolveIcon returns key if it names a known icon, DefaultIcon otherwise.
func ResolveIcon(key string) string {
	if _, ok := icons[key]; ok {
		return key
	}
	return DefaultIcon
}

// ResolveColor returns key if it names a known color pair, DefaultColor otherwise.
func ResolveColor(key string) string {
	if _, ok := colors[key]; ok {
		return key
	}
	return DefaultColor
}

// Color returns the pair for key, falling back to the default pair.
func Color(key string) ColorPair {
	return colors[ResolveColor(key)]
}

// IconKeys lists the known icon keys in sorted order.
func IconKeys() []string {
	keys := make([]string, 0, len(icons))
	for k := range icons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ColorKeys lists the known color keys in sorted order.
func ColorKeys() []string {
	keys := make([]string, 0, len(colors))
	for k := range colors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsDefaultAvatar reports whether ref is one of DefaultAvatars.
func IsDefaultAvatar(ref string) bool {
	for _, a := range DefaultAvatars {
		if a == ref {
			return true
		}
	}
	return false
}

// PickDefaultAvatar chooses a default avatar using intn, which must return a
// value in [0, n).
func PickDefaultAvatar(intn func(n int) int) string {
	return DefaultAvatars[intn(len(DefaultAvatars))]
}
