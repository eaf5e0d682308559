package sync

import (
	"time"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// MergeDirection says which side of a settings conflict wins.
type MergeDirection string

const (
	// MergeApplyRemote means the remote copy is strictly newer and
	// should replace local state.
	MergeApplyRemote MergeDirection = "apply_remote"
	// MergePushLocal means the local copy is strictly newer and should
	// be broadcast back out.
	MergePushLocal MergeDirection = "push_local"
	// MergeNoop means the timestamps are equal and nothing moves.
	MergeNoop MergeDirection = "noop"
)

// MergeSettings resolves a cross-device settings conflict with
// last-writer-wins semantics on the updated-at timestamp. Equal
// timestamps deliberately change nothing, so two devices reaching the
// same state never ping-pong updates.
func MergeSettings(local domain.Settings, localAt time.Time, remote domain.Settings, remoteAt time.Time) (domain.Settings, time.Time, MergeDirection) {
	switch {
	case remoteAt.After(localAt):
		return remote, remoteAt, MergeApplyRemote
	case localAt.After(remoteAt):
		return local, localAt, MergePushLocal
	default:
		return local, localAt, MergeNoop
	}
}
