package background

import "fmt"

// Kind distinguishes image backgrounds from gradient fallbacks.
type Kind string

const (
	KindImage    Kind = "image"
	KindGradient Kind = "gradient"
)

// Value is a renderable background.
type Value struct {
	Kind     Kind   `json:"kind"`
	URL      string `json:"url,omitempty"`
	Gradient string `json:"gradient,omitempty"`
}

// ImageValue wraps a probed image URL.
func ImageValue(url string) Value {
	return Value{Kind: KindImage, URL: url}
}

// GradientValue wraps a fallback gradient.
func GradientValue(css string) Value {
	return Value{Kind: KindGradient, Gradient: css}
}

// CSS renders the value for a `background` declaration.
func (v Value) CSS() string {
	if v.Kind == KindImage {
		return fmt.Sprintf("url(%s)", v.URL)
	}
	return v.Gradient
}
