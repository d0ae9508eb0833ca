// Package common holds process-level helpers shared by every binary:
// logger construction and build metadata.
package common

const PackageName = "templatizer"

// Version is overwritten at link time with -ldflags "-X ...common.Version=...".
var Version = "dev"
