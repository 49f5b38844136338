package dto

import "time"

type SnapshotResponse struct {
	Key        string    `json:"key"`
	Bucket     string    `json:"bucket"`
	UploadedAt time.Time `json:"uploaded_at"`
}
