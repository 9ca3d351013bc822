// Package models defines the wire types exchanged with the remote note store.
package models

import "time"

// Detail is the mutable content and metadata block of a note.
type Detail struct {
	Tags             []string `json:"tags"`
	Deleted          bool     `json:"deleted"`
	ShareURL         string   `json:"shareURL"`
	SystemTags       []string `json:"systemTags"`
	Content          string   `json:"content"`
	PublishURL       string   `json:"publishURL"`
	ModificationDate float64  `json:"modificationDate"`
	CreationDate     float64  `json:"creationDate"`
}

// NewDetail returns a detail block stamped with the current time.
func NewDetail(content string) Detail {
	now := Timestamp(time.Now())
	return Detail{
		Tags:             []string{},
		SystemTags:       []string{},
		Content:          content,
		ModificationDate: now,
		CreationDate:     now,
	}
}

// Clone returns a deep copy of d.
func (d Detail) Clone() Detail {
	c := d
	c.Tags = append([]string(nil), d.Tags...)
	c.SystemTags = append([]string(nil), d.SystemTags...)
	return c
}

// Record is a note as returned by the remote store.
type Record struct {
	ID      string `json:"id"`
	Version int    `json:"v"`
	Detail  Detail `json:"d"`
}

// Delta is one entry of the remote index listing.
type Delta struct {
	ID       string  `json:"id"`
	Modified float64 `json:"modified"`
	Deleted  int     `json:"deleted"`
}

// FileMetadata describes a materialized note file.
type FileMetadata struct {
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Timestamp converts t to fractional Unix seconds.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Time converts fractional Unix seconds back to a time.Time.
func Time(ts float64) time.Time {
	return time.Unix(0, int64(ts*float64(time.Second)))
}
