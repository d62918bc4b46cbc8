// Package session stores the operator's session credential.
//
// Exactly one credential is active at a time and its presence is the only
// signal that the console is authenticated. The request gateway reads it on
// every call and clears it when the backend answers 401; login writes it and
// logout clears it. Nothing else touches the store.
//
// Backends:
//
//   - FileStore: a 0600 token file, ~/.config/pharma/token by default
//   - SQLiteStore: a local_storage key/value table, key "authToken"
//   - MemoryStore: process memory, for tests and PHARMA_TOKEN injection
package session
