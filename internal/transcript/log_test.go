package transcript_test

import (
	"testing"

	"github.com/herowayua/livevoice/internal/transcript"
	"github.com/herowayua/livevoice/pkg/audio"
)

func TestLog_MergesSameSpeakerFragments(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerLocal, Text: "Hel"})
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerLocal, Text: "lo"})
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerRemote, Text: "Hi"})
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerLocal, Text: "there"})

	msgs := log.Snapshot()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Text != "Hello" || msgs[0].Speaker != audio.SpeakerLocal {
		t.Errorf("msg[0] = %+v, want local 'Hello'", msgs[0])
	}
	if msgs[1].Text != "Hi" || msgs[1].Speaker != audio.SpeakerRemote {
		t.Errorf("msg[1] = %+v, want remote 'Hi'", msgs[1])
	}
	if msgs[2].Text != "there" || msgs[2].Speaker != audio.SpeakerLocal {
		t.Errorf("msg[2] = %+v, want local 'there'", msgs[2])
	}
}

func TestLog_IgnoresEmptyFragments(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerLocal, Text: ""})
	if log.Len() != 0 {
		t.Errorf("empty fragment created a message")
	}
}

func TestLog_AssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerLocal, Text: "a"})
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerRemote, Text: "b"})

	msgs := log.Snapshot()
	if msgs[0].ID == "" || msgs[1].ID == "" {
		t.Fatal("message without ID")
	}
	if msgs[0].ID == msgs[1].ID {
		t.Error("duplicate message IDs")
	}
}

func TestLog_MergeKeepsOriginalID(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerRemote, Text: "How "})
	first, _ := log.Last()
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerRemote, Text: "are you?"})
	merged, _ := log.Last()

	if merged.ID != first.ID {
		t.Error("merging a fragment changed the message ID")
	}
	if merged.Text != "How are you?" {
		t.Errorf("merged text = %q", merged.Text)
	}
}

func TestLog_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerLocal, Text: "x"})

	snap := log.Snapshot()
	snap[0].Text = "mutated"

	fresh := log.Snapshot()
	if fresh[0].Text != "x" {
		t.Error("mutating a snapshot changed the log")
	}
}

func TestLog_Render(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerRemote, Text: "Tell me about yourself. "})
	log.Append(audio.TranscriptEvent{Speaker: audio.SpeakerLocal, Text: "I am a Go developer."})

	got := log.Render()
	want := "Interviewer: Tell me about yourself.\nCandidate: I am a Go developer.\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestPhraseDetector_ExactMatch(t *testing.T) {
	t.Parallel()

	d := transcript.NewPhraseDetector("the interview is complete")
	if !d.Match("Thank you for your time. The interview is complete.") {
		t.Error("exact phrase not detected")
	}
}

func TestPhraseDetector_FuzzyMatch(t *testing.T) {
	t.Parallel()

	d := transcript.NewPhraseDetector("the interview is complete")
	if !d.Match("Alright, the interview is completed, thanks for coming") {
		t.Error("near-identical phrase not detected")
	}
}

func TestPhraseDetector_NoMatch(t *testing.T) {
	t.Parallel()

	d := transcript.NewPhraseDetector("the interview is complete")
	for _, text := range []string{
		"Let's move on to the next question",
		"complete",
		"",
	} {
		if d.Match(text) {
			t.Errorf("false positive on %q", text)
		}
	}
}

func TestPhraseDetector_CaseAndPunctuationInsensitive(t *testing.T) {
	t.Parallel()

	d := transcript.NewPhraseDetector("The Interview Is Complete")
	if !d.Match("the interview is complete") {
		t.Error("case difference broke detection")
	}
}

func TestPhraseDetector_NilNeverMatches(t *testing.T) {
	t.Parallel()

	d := transcript.NewPhraseDetector("")
	if d != nil {
		t.Fatal("empty phrase should produce nil detector")
	}
	if d.Match("anything") {
		t.Error("nil detector matched")
	}
}
