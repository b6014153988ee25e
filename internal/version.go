package internal

// Version is the application version, bumped on release.
const Version = "0.1.0"
