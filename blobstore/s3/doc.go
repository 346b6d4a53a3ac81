// Package s3 stores snapshots in Amazon S3.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "rollups/wikipedia")
//
// For several writers sharing one prefix, wrap the store in a DDBCommitStore
// so the CURRENT pointer advances through DynamoDB conditional writes:
//
//	commits := s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), "rollup-commits", "s3://my-bucket/rollups/wikipedia")
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
package s3
