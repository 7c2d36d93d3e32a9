// Package media uploads user-supplied images to an S3-compatible object
// store and serves back stable public references.
//
// A reference is the full public URL of the stored object; the session layer
// persists it on the account record and deletes the previous object when a
// field is replaced.
package media
