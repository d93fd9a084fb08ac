// Package remote abstracts the transfer of manifest files between the local
// working directory and the authoritative remote location. It is the only
// layer that knows how the remote side is reached.
//
// The package is organized into several subpackages:
//
//   - fs: Remote backed by a mounted filesystem path (NFS share, CI volume),
//     transferring objects with atomic rename semantics.
//
//   - http: Remote backed by an HTTP(S) object endpoint, using GET and PUT
//     with a bounded retry loop.
//
//   - testing: A shared conformance suite that every IRemoteSync
//     implementation must pass.
//
// All implementations report failures as *TransportError. A missing remote
// object is distinguished from other failures by wrapping os.ErrNotExist, so
// callers can treat "nothing published yet" separately from "remote broken".
package remote
