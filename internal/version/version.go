package version

// Version is overridden at build time with -ldflags "-X github.com/feyza/backend/internal/version.Version=...".
var Version = "dev"
