package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrImageAlreadySet    = errors.New("record image already set")
	ErrFeedbackAlreadySet = errors.New("record feedback already set")
)

// #region history

// History is the ordered conversation record. It is a value: every mutating method
// returns a new History and leaves the receiver untouched.
type History struct {
	records []TurnRecord
}

// New builds a history from existing records, in order.
func New(records ...TurnRecord) History {
	out := make([]TurnRecord, len(records))
	copy(out, records)
	return History{records: out}
}

// NewRecord fills in identity and timestamp for a record about to be appended.
func NewRecord(role Role, text string) TurnRecord {
	return TurnRecord{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// Len returns the number of records.
func (h History) Len() int {
	return len(h.records)
}

// Records returns a copy of all records in order.
func (h History) Records() []TurnRecord {
	out := make([]TurnRecord, len(h.records))
	copy(out, h.records)
	return out
}

// At returns the record at index i.
func (h History) At(i int) TurnRecord {
	return h.records[i]
}

// Last returns the final record.
func (h History) Last() (TurnRecord, bool) {
	if len(h.records) == 0 {
		return TurnRecord{}, false
	}
	return h.records[len(h.records)-1], true
}

// Find looks a record up by id.
func (h History) Find(id string) (TurnRecord, bool) {
	if i := h.index(id); i >= 0 {
		return h.records[i], true
	}
	return TurnRecord{}, false
}

// LatestImage returns the most recent non-empty image reference.
func (h History) LatestImage() string {
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].Image != "" {
			return h.records[i].Image
		}
	}
	return ""
}

func (h History) index(id string) int {
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].ID == id {
			return i
		}
	}
	return -1
}

// #endregion history

// #region append

// Append returns a history with rec added at the end. A record without an id gets one.
func (h History) Append(rec TurnRecord) History {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	out := make([]TurnRecord, len(h.records), len(h.records)+1)
	copy(out, h.records)
	return History{records: append(out, rec)}
}

// #endregion append

// #region patch

// PatchImage fills in the image of a record that was waiting for one.
// A record can be patched once; later patches return ErrImageAlreadySet.
func (h History) PatchImage(id, image string) (History, error) {
	i := h.index(id)
	if i < 0 {
		return h, fmt.Errorf("patch image %s: %w", id, ErrRecordNotFound)
	}
	if !h.records[i].ImagePending {
		return h, fmt.Errorf("patch image %s: %w", id, ErrImageAlreadySet)
	}
	out := h.Records()
	out[i].Image = image
	out[i].ImagePending = false
	return History{records: out}, nil
}

// AttachFeedback sets the feedback of a user record once.
func (h History) AttachFeedback(id string, fb Feedback) (History, error) {
	i := h.index(id)
	if i < 0 {
		return h, fmt.Errorf("attach feedback %s: %w", id, ErrRecordNotFound)
	}
	if h.records[i].Feedback != nil {
		return h, fmt.Errorf("attach feedback %s: %w", id, ErrFeedbackAlreadySet)
	}
	out := h.Records()
	f := fb
	out[i].Feedback = &f
	return History{records: out}, nil
}

// #endregion patch

// #region rollback

// RollbackFailedTurn removes the trailing failure marker together with the user
// records it refers to. When the records before the marker do not have the expected
// shape only the marker is removed. ok is false when the history does not end in a
// failure marker.
func (h History) RollbackFailedTurn() (out History, marker TurnRecord, ok bool) {
	last, exists := h.Last()
	if !exists || !last.IsFailureMarker() {
		return h, TurnRecord{}, false
	}

	end := len(h.records) - 1
	cut := end
	f := last.Failure

	// Walk back over the user records the failed submission appended, newest first:
	// the gesture record, then the dialogue record.
	if f.Gesture != "" && cut > 0 {
		prev := h.records[cut-1]
		if prev.Role == RoleUserAction && prev.Text == f.Gesture {
			cut--
		}
	}
	if f.Dialogue != "" && cut > 0 {
		prev := h.records[cut-1]
		if prev.Role == RoleUser && prev.Text == f.Dialogue {
			cut--
		}
	}
	if expected := expectedUserRecords(f); end-cut != expected {
		cut = end
	}

	records := make([]TurnRecord, cut)
	copy(records, h.records[:cut])
	return History{records: records}, last, true
}

func expectedUserRecords(f *Failure) int {
	n := 0
	if f.Dialogue != "" {
		n++
	}
	if f.Gesture != "" {
		n++
	}
	return n
}

// #endregion rollback

// #region text

// DialogueText joins the dialogue segments of a response, in order.
func DialogueText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Kind != SegmentDialogue {
			continue
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// #endregion text

// #region json

func (h History) MarshalJSON() ([]byte, error) {
	if h.records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.records)
}

func (h *History) UnmarshalJSON(b []byte) error {
	var records []TurnRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return err
	}
	h.records = records
	return nil
}

// #endregion json
