// Package keygen generates SSH key pairs.
//
// Keys are produced as PEM private keys and OpenSSH authorized_keys public
// keys. The SSH executor tests use them to stand up throwaway servers.
package keygen
