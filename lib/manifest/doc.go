// Package manifest maintains the per-resource release manifests: JSON
// documents listing the published releases of one platform, shared between
// publishers through a remote location.
//
// Core Functionality:
//   - Download-or-local-read of the authoritative manifest copy
//   - In-memory merge of a new release entry through a caller supplied
//     MergeFunc, with insert-or-replace and append-if-absent policies
//     provided
//   - Atomic replacement of the local manifest file
//   - Backup and byte-for-byte rollback when publishing to the remote fails
//
// Implementation Approach:
//
//	Update runs a fixed sequence: refresh the local copy from the remote,
//	snapshot it to <manifest>.bak, merge in memory, replace the local file
//	atomically (write to temp, fsync, rename), then upload. A verify
//	callback runs between the phases; the coordinator passes one that
//	confirms the publish lock is still held, so a lost lock stops the
//	update before the next phase. If the upload fails the backup is moved
//	back over the manifest, restoring the exact previous bytes, and the
//	remote copy is left as it was. The backup never outlives the update.
//
//	Only the releases collection of the document is interpreted. All other
//	top level fields are carried through byte for byte, so pipelines can
//	keep extra data (base urls, channel pointers) next to the releases
//	without the coordinator knowing about it.
//
// Failure Categories:
//
//	A failed download falls back to the existing local copy and is not
//	fatal. A rejected merge (*MergeError) aborts before anything is
//	written. A failed upload (*SyncError) rolls the local state back.
//
// Usage Example:
//
//	store := manifest.NewStore(manifest.Config{WorkDir: "/var/lib/relgate"}, rs)
//	err := store.Update("linux", verify,
//		manifest.InsertOrReplace(manifest.Record{
//			"version": "1.4.0",
//			"channel": "stable",
//		}))
package manifest
