package models

// Recording is an audio file produced by the capture pipeline.
type Recording struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	FilePath        string `json:"file_path"`
	DurationSec     int64  `json:"duration_sec"`
	FileSizeBytes   int64  `json:"file_size_bytes"`
	FolderID        *int64 `json:"folder_id,omitempty"`
	CalendarEventID *int64 `json:"calendar_event_id,omitempty"`
	Timestamps
}

func (Recording) Entity() Entity { return EntityRecording }
func (r Recording) RowID() int64 { return r.ID }

type Transcript struct {
	ID          int64  `json:"id"`
	RecordingID int64  `json:"recording_id"`
	Text        string `json:"text"`
	Timestamps
}

func (Transcript) Entity() Entity { return EntityTranscript }
func (t Transcript) RowID() int64 { return t.ID }

type Summary struct {
	ID          int64  `json:"id"`
	RecordingID int64  `json:"recording_id"`
	Text        string `json:"text"`
	Timestamps
}

func (Summary) Entity() Entity { return EntitySummary }
func (s Summary) RowID() int64 { return s.ID }
