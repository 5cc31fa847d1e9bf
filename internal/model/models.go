package model

import "time"

// Container is a named collection of items owned by a single user.
// Its head files live in a directory named after the container.
type Container struct {
	ID        string // UUID
	Owner     string
	Name      string // Globally unique, also the directory name
	Readonly  bool
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a file inside a container. Filesize and Checksum always describe
// the bytes currently at the item's head path.
type Item struct {
	ID                   string // UUID
	ContainerID          string // Foreign key to Container
	Filename             string // Unique within the container
	Filesize             int64
	Mimetype             string
	Checksum             string
	LatestRevisionNumber int64 // 0 until the first replace
	Summary              string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Revision is an immutable copy of a previous head of an item.
type Revision struct {
	ID             string // UUID
	ItemID         string // Foreign key to Item
	Creator        string
	RevisionNumber int64  // Unique per item, strictly increasing
	UUID           string // File name under the revisions root
	Filesize       int64
	Checksum       string
	CreatedAt      time.Time
}

// Thumbnail is a rendered preview of an image item. An item has at most one.
type Thumbnail struct {
	ID        string // UUID
	ItemID    string // Foreign key to Item
	UUID      string
	Extension string // Including the leading dot
	Filesize  int64
	Checksum  string
	CreatedAt time.Time
}

// Filename returns the name of the thumbnail file under the thumbnails root.
func (t *Thumbnail) Filename() string {
	return t.UUID + t.Extension
}
