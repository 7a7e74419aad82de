package types

// Status is the lifecycle of a database resource, used to soft delete
// and archive rows without losing history
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}
