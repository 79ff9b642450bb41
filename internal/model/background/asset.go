package background

// Asset pairs a background image path with its fallback gradient.
type Asset struct {
	Index    int    `json:"index"`
	Path     string `json:"path"`
	Gradient string `json:"gradient"`
	Label    string `json:"label"`
}

// Seed provides the default scene catalog of the Ranger adventure.
func Seed() []Asset {
	return []Asset{
		{Path: "/images/bg1.jpg", Gradient: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)", Label: "Seoul Streets"},
		{Path: "/images/bg2.jpg", Gradient: "linear-gradient(135deg, #f093fb 0%, #f5576c 100%)", Label: "Ranger HQ"},
		{Path: "/images/bg3.jpg", Gradient: "linear-gradient(135deg, #4facfe 0%, #00f2fe 100%)", Label: "Monument"},
		{Path: "/images/bg4.jpg", Gradient: "linear-gradient(135deg, #43e97b 0%, #38f9d7 100%)", Label: "Hotel Bar"},
		{Path: "/images/bg5.jpg", Gradient: "linear-gradient(135deg, #fa709a 0%, #fee140 100%)", Label: "Combat Zone"},
	}
}
