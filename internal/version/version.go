// ABOUTME: Version information for the sounddevice tools
// ABOUTME: Version is set at build time with -ldflags
package version

// Version is overridden with -ldflags "-X .../internal/version.Version=x.y.z"
var Version = "0.1.0-dev"

const (
	Product      = "sounddevice"
	Manufacturer = "go-sounddevice"
)

// String returns the product name and version
func String() string {
	return Product + " " + Version
}
