// Package file provides file-based configuration storage.
//
// Configuration is persisted as TOML under the docmoa config
// directory (~/.docmoa by default) and exposed through the
// driven.ConfigStore port with dot-notation keys.
package file
