package history

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendIsCopyOnWrite(t *testing.T) {
	h0 := New()
	h1 := h0.Append(NewRecord(RoleUser, "hi"))
	h2 := h1.Append(NewRecord(RoleAI, "hello"))

	assert.Equal(t, 0, h0.Len())
	assert.Equal(t, 1, h1.Len())
	assert.Equal(t, 2, h2.Len())
	assert.Equal(t, RoleUser, h2.At(0).Role)
	assert.Equal(t, RoleAI, h2.At(1).Role)
}

func TestAppendAssignsIdentity(t *testing.T) {
	h := New().Append(TurnRecord{Role: RoleSystem, Text: "x"})
	rec, _ := h.Last()
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestPatchImageOnce(t *testing.T) {
	rec := NewRecord(RoleAI, "hello")
	rec.ImagePending = true
	h := New().Append(rec)

	patched, err := h.PatchImage(rec.ID, "img://2")
	require.NoError(t, err)
	got, _ := patched.Find(rec.ID)
	assert.Equal(t, "img://2", got.Image)
	assert.False(t, got.ImagePending)

	// original value untouched
	orig, _ := h.Find(rec.ID)
	assert.Empty(t, orig.Image)

	_, err = patched.PatchImage(rec.ID, "img://3")
	assert.True(t, errors.Is(err, ErrImageAlreadySet))
}

func TestPatchImageTargetsExactRecord(t *testing.T) {
	a := NewRecord(RoleAI, "a")
	a.ImagePending = true
	b := NewRecord(RoleAI, "b")
	b.ImagePending = true
	h := New(a, b)

	h, err := h.PatchImage(a.ID, "img://a")
	require.NoError(t, err)

	gotA, _ := h.Find(a.ID)
	gotB, _ := h.Find(b.ID)
	assert.Equal(t, "img://a", gotA.Image)
	assert.Empty(t, gotB.Image)
	assert.True(t, gotB.ImagePending)
}

func TestPatchImageUnknownRecord(t *testing.T) {
	_, err := New().PatchImage("missing", "img")
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestLatestImage(t *testing.T) {
	a := NewRecord(RoleAI, "a")
	a.Image = "img://x"
	b := NewRecord(RoleUser, "b")
	h := New(a, b)
	assert.Equal(t, "img://x", h.LatestImage())
	assert.Empty(t, New().LatestImage())
}

func TestAttachFeedbackOnce(t *testing.T) {
	u := NewRecord(RoleUser, "hey")
	h := New(u)

	h, err := h.AttachFeedback(u.ID, Feedback{EngagementDelta: 3})
	require.NoError(t, err)
	got, _ := h.Find(u.ID)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, 3, got.Feedback.EngagementDelta)

	_, err = h.AttachFeedback(u.ID, Feedback{})
	assert.True(t, errors.Is(err, ErrFeedbackAlreadySet))
}

func TestRollbackFailedTurn(t *testing.T) {
	base := New(NewRecord(RoleAI, "welcome"))

	tests := []struct {
		name     string
		build    func(History) History
		wantLen  int
		wantOK   bool
		wantTrig TriggerKind
	}{
		{
			name: "dialogue pair removed",
			build: func(h History) History {
				h = h.Append(NewRecord(RoleUser, "how are you?"))
				return h.Append(marker(Failure{Trigger: TriggerUserTurn, Dialogue: "how are you?"}))
			},
			wantLen:  1,
			wantOK:   true,
			wantTrig: TriggerUserTurn,
		},
		{
			name: "dialogue and gesture removed",
			build: func(h History) History {
				h = h.Append(NewRecord(RoleUser, "hi"))
				h = h.Append(NewRecord(RoleUserAction, "waves"))
				return h.Append(marker(Failure{Trigger: TriggerUserTurn, Dialogue: "hi", Gesture: "waves"}))
			},
			wantLen:  1,
			wantOK:   true,
			wantTrig: TriggerUserTurn,
		},
		{
			name: "unexpected shape removes marker only",
			build: func(h History) History {
				h = h.Append(NewRecord(RoleUser, "something else"))
				return h.Append(marker(Failure{Trigger: TriggerUserTurn, Dialogue: "hi"}))
			},
			wantLen:  2,
			wantOK:   true,
			wantTrig: TriggerUserTurn,
		},
		{
			name: "silent continue marker alone",
			build: func(h History) History {
				return h.Append(marker(Failure{Trigger: TriggerSilentContinue}))
			},
			wantLen:  1,
			wantOK:   true,
			wantTrig: TriggerSilentContinue,
		},
		{
			name:    "no marker",
			build:   func(h History) History { return h.Append(NewRecord(RoleUser, "hi")) },
			wantLen: 2,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.build(base)
			out, m, ok := h.RollbackFailedTurn()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLen, out.Len())
			if tt.wantOK {
				require.NotNil(t, m.Failure)
				assert.Equal(t, tt.wantTrig, m.Failure.Trigger)
			}
		})
	}
}

func TestDialogueText(t *testing.T) {
	segs := []Segment{
		{Kind: SegmentDialogue, Text: "Oh, hi."},
		{Kind: SegmentThought, Text: "who is this?"},
		{Kind: SegmentNarration, Text: "She looks up."},
		{Kind: SegmentDialogue, Text: " Nice day. "},
	}
	assert.Equal(t, "Oh, hi. Nice day.", DialogueText(segs))
}

func TestHistoryJSON(t *testing.T) {
	h := New(NewRecord(RoleBackstory, "they met at a cafe"))
	data, err := json.Marshal(h)
	require.NoError(t, err)

	var back History
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, 1, back.Len())
	assert.Equal(t, RoleBackstory, back.At(0).Role)

	empty, err := json.Marshal(History{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func marker(f Failure) TurnRecord {
	rec := NewRecord(RoleSystem, "turn failed: "+f.Error)
	rec.Failure = &f
	return rec
}
