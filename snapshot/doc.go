// Package snapshot saves the records of every namespace to a blobstore.Store
// and restores them.
//
// A snapshot is a directory of blobs:
//
//	snapshots/<id>/manifest.json    JSON manifest
//	snapshots/<id>/ns-000000.log    change log of namespace 0
//	snapshots/<id>/ns-000001.log    change log of namespace 1
//	CURRENT                         path of the latest manifest
//
// Namespace blobs are change logs of upsert entries, so restoring a snapshot
// is a replay. Snapshot ids are UUIDv7 and sort by creation time. CURRENT is
// written last; a crash in the middle of Save leaves the previous snapshot in
// place.
//
// # Usage
//
//	m, err := snapshot.Save(ctx, store, mgr)
//	...
//	img, err := snapshot.Capture(ctx, mgr) // pause writers around Capture
//	img.LSN = lastLoggedLSN
//	m, err = img.Save(ctx, store)
//	...
//	m, err = snapshot.Load(ctx, store, mgr)
package snapshot
