// Package credential provides the pairing credential capabilities used by
// THP channel establishment.
//
// A device checks the credential presented in the completion request through
// a [Verifier]; a host picks the credential to present through a [Store],
// keyed on the device static key learned during the handshake. The format of
// a credential is opaque to the protocol core.
//
// [Issuer] is a Verifier that issues and checks MAC credentials bound to the
// host static key. [MemoryStore] and [FileStore] are Stores; FileStore keeps
// credentials in a YAML file.
package credential
