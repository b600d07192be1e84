// Package ring implements a key-value database (KVDB) that keeps every entry
// as an item in a keyring opened with github.com/99designs/keyring. The
// default backend is the encrypted file keyring, so values are encrypted at
// rest with a password given in the options. System keyrings (secret service,
// keychain, wincred) can be selected through DBOptions.Backends.
//
// Keys are stored base64url encoded as keyring item keys. The file backend
// uses them as file names, which limits keys to about 190 bytes there.
//
// The keyring persists each write immediately, so Save and Load are not
// supported and the database cannot back a replicated store.
package ring
