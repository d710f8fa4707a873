package swapchain

import "log"

// Debug gates the package's diagnostic prints, the Go stand-in for the
// original's WSI_PRINT_ERROR-style compile-time debug prints (and
// gviegas-neo3's println(res) in driver/vk/present.go). No structured
// logging library appears anywhere in the reference corpus, so this
// uses log.Default() directly rather than reaching for one.
var Debug bool

func debugf(format string, args ...any) {
	if Debug {
		log.Printf("swapchain: "+format, args...)
	}
}
