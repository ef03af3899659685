package models

// Folder groups recordings; deleting it deletes them.
type Folder struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Timestamps
}

func (Folder) Entity() Entity { return EntityFolder }
func (f Folder) RowID() int64 { return f.ID }
