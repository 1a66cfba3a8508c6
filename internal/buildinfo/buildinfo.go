// Package buildinfo carries version metadata stamped at build time:
//
//	go build -ldflags "-X 'github.com/m3rciful/otpbot/internal/buildinfo.Version=v1.2.3' \
//	  -X 'github.com/m3rciful/otpbot/internal/buildinfo.Commit=abcdef0' \
//	  -X 'github.com/m3rciful/otpbot/internal/buildinfo.Date=2026-08-29T12:00:00Z'"
//
// Unstamped binaries report dev/local values.
package buildinfo

var (
	// Version is the release tag of the build.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "local"
	// Date is the build timestamp, RFC 3339.
	Date = ""
)
