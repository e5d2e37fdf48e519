package taillog

// Version is the semantic version of the taillog library.
// It can be overridden at build time using:
//
//	go build -ldflags "-X github.com/CVDpl/go-taillog/pkg/taillog.Version=0.2.1"
//
// Default value follows SemVer.
var Version = "0.2.0"
