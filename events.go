package main

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless console output receive the same dictation events.
type EventSink interface {
	RecordingStart(toggled bool)
	RecordingStop()
	LivePartial(text string)
	Utterance(text string, copied bool, noSpeech bool)
	ModeLine(text string)
	SessionLine(text string)
	Warning(text string)
	Error(err error)
}
