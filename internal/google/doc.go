// Package google manages the OAuth2 credentials used to read the Gmail inbox.
//
// Tokens are stored per account as JSON files in a cache directory. The auth
// command writes them with Exchange and SaveToken; the worker reads them with
// HTTPClient, which persists refreshed tokens back to disk.
package google
