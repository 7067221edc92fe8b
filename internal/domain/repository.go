package domain

import "context"

// UserRepository persists the users collection. Update runs fn against a
// fresh snapshot and saves the result; an error from fn aborts the save.
type UserRepository interface {
	List(ctx context.Context) UserCollection
	Get(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, fn func(*UserCollection) error) error
}

// DrawRepository persists the draws document
type DrawRepository interface {
	Load(ctx context.Context) DrawFile
	Get(ctx context.Context, name string) (*Draw, error)
	Active(ctx context.Context) (*Draw, error)
	Update(ctx context.Context, fn func(*DrawFile) error) error
}

// ResetRequestRepository persists password reset requests
type ResetRequestRepository interface {
	List(ctx context.Context) ResetRequestCollection
	Update(ctx context.Context, fn func(*ResetRequestCollection) error) error
}

// ActivityRecorder receives activity log entries
type ActivityRecorder interface {
	Record(ctx context.Context, actor Actor, action, detail string)
}
