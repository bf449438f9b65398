// Package settings applies editor settings profiles to the user's
// settings.json.
//
// A profile is a YAML document with an overrides map and an optional remove
// list, validated against an embedded JSON schema. settings.json is read as
// JSON with comments, so hand-edited files are accepted, and written back as
// plain sorted JSON.
package settings
