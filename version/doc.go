// Package version reports build information for seqkit commands.
//
// Version, commit and build time are set at link time and fall back to the
// VCS stamps Go embeds in the binary:
//
//	go build -ldflags "-X github.com/kbukum/seqkit/version.Version=1.2.0" ./cmd/seqdemo
package version
