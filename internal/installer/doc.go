// Package installer puts a verified artifact onto the system.
//
// Dispatch picks an Installer by artifact kind: native packages go through
// the distribution's package manager, archives are unpacked into the user's
// data directory. Every external command runs through the session's
// executor.
package installer
