package sqldb

import "database/sql"

type Observation struct {
	Time               int64
	Suspicion          string
	Comment            sql.NullString
	Determined         int64
	ImagesAttached     int64
	RecordingsAttached int64
	PosLatitude        sql.NullFloat64
	PosLongitude       sql.NullFloat64
}

type Tag struct {
	Tag    string
	Parent sql.NullString
}

type Attachment struct {
	FilePath             string
	ObservationTime      int64
	ObservationSuspicion string
	Type                 string
}

type ObservationTag struct {
	ObservationTime      int64
	ObservationSuspicion string
	Tag                  string
}
