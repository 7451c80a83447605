package version

// Tag is the courier build version, set with
// -ldflags "-X github.com/corvusHold/courier/internal/version.Tag=v1.2.3".
var Tag = "dev"

// String returns Tag, or "dev" when it is unset.
func String() string {
	if Tag == "" {
		return "dev"
	}
	return Tag
}
