// Package minio stores snapshots in MinIO or any S3-compatible object store
// (Ceph, Garage, SeaweedFS) through the minio-go client.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := minioblob.NewStore(client, "my-bucket", "rollups/")
//
// # Features
//
//   - Range reads for partial fetches
//   - Streaming uploads of unknown size
//   - No AWS SDK dependency
package minio
