package media

import "context"

// Host stores uploaded files and removes superseded ones.
//
// Upload takes a staged local file, stores it remotely and returns the public
// reference. The local file is consumed: it is removed whether or not the
// upload succeeds. Delete accepts a reference previously returned by Upload.
type Host interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Delete(ctx context.Context, ref string) error
}
