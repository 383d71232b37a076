package version

// Version is the release of the service. Overridden at build time with
// -ldflags "-X giggleglitch/pkg/version.Version=...".
var Version = "v0.3.0"
