// Package s3 stores snapshots in Amazon S3, with an optional
// DynamoDB-backed CURRENT pointer for atomic commits across concurrent
// writers.
package s3
