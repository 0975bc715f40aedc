// Package config loads and saves the client's YAML settings file.
//
// A missing file is created from defaults. A file written by an older
// version gains any keys it lacks and is rewritten in place, so settings
// survive upgrades without manual edits.
package config
