// Package platform detects the host operating system, CPU architecture and
// Linux distribution family, and maps them to the editor download channel
// and the package format the native installer expects.
package platform
