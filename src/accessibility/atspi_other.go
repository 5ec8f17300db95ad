//go:build !linux

package accessibility

import "errors"

// NewPlatformTree has no backend outside Linux yet; callers fall back to the
// synthetic copy path.
func NewPlatformTree() (Tree, error) {
	return nil, errors.New("accessibility tree not supported on this platform")
}
