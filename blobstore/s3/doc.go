// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "vecspace/")
//
// Small blobs are written with a single checksummed PutObject; larger ones
// use multipart uploads.
//
// # Atomic Commits
//
// S3 offers no compare-and-swap, so two writers can overwrite each other's
// CURRENT pointer. DDBCommitStore keeps that pointer in DynamoDB behind a
// conditional write:
//
//	commits := s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), "vecspace-commits", "s3://my-bucket/vecspace")
package s3
