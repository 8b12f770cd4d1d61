package models

// ObjectEvent is an object-store notification carrying one or more records.
// The JSON shape matches S3 event notifications.
type ObjectEvent struct {
	Records []EventRecord `json:"Records"`
}

// EventRecord is a single uploaded object in an ObjectEvent.
type EventRecord struct {
	EventName string   `json:"eventName,omitempty"`
	S3        S3Entity `json:"s3"`
}

// S3Entity holds the bucket and object of an EventRecord.
type S3Entity struct {
	Bucket S3Bucket `json:"bucket"`
	Object S3Object `json:"object"`
}

// S3Bucket identifies the bucket of an event record.
type S3Bucket struct {
	Name string `json:"name"`
}

// S3Object identifies the object of an event record. Key is URL-encoded as delivered by S3.
type S3Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// NewEventRecord builds a record for bucket/key. The key is stored as given.
func NewEventRecord(bucket, key string, size int64) EventRecord {
	return EventRecord{
		EventName: "ObjectCreated:Put",
		S3: S3Entity{
			Bucket: S3Bucket{Name: bucket},
			Object: S3Object{Key: key, Size: size},
		},
	}
}
