package logging

import "sync"

// Entry is a log entry captured by a Recorder
type Entry struct {
	Level   LogLevel
	Message string
	Fields  []Field
}

// Field returns the value of the named field and whether it is present
func (e Entry) Field(key string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type recorderSink struct {
	mu      sync.Mutex
	entries []Entry
}

// Recorder is a Logger that keeps entries in memory, for tests
type Recorder struct {
	sink   *recorderSink
	fields []Field
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{sink: &recorderSink{}}
}

func (r *Recorder) record(level LogLevel, msg string, fields []Field) {
	all := make([]Field, 0, len(r.fields)+len(fields))
	all = append(all, r.fields...)
	all = append(all, fields...)

	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	r.sink.entries = append(r.sink.entries, Entry{Level: level, Message: msg, Fields: all})
}

// Debug records a debug entry
func (r *Recorder) Debug(msg string, fields ...Field) { r.record(DebugLevel, msg, fields) }

// Info records an info entry
func (r *Recorder) Info(msg string, fields ...Field) { r.record(InfoLevel, msg, fields) }

// Warn records a warning entry
func (r *Recorder) Warn(msg string, fields ...Field) { r.record(WarnLevel, msg, fields) }

// Error records an error entry
func (r *Recorder) Error(msg string, fields ...Field) { r.record(ErrorLevel, msg, fields) }

// With returns a recorder writing into the same entry list
func (r *Recorder) With(fields ...Field) Logger {
	all := make([]Field, 0, len(r.fields)+len(fields))
	all = append(all, r.fields...)
	return &Recorder{sink: r.sink, fields: append(all, fields...)}
}

// Entries returns a copy of all recorded entries
func (r *Recorder) Entries() []Entry {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	entries := make([]Entry, len(r.sink.entries))
	copy(entries, r.sink.entries)
	return entries
}

// Messages returns the messages recorded at level
func (r *Recorder) Messages(level LogLevel) []string {
	var messages []string
	for _, e := range r.Entries() {
		if e.Level == level {
			messages = append(messages, e.Message)
		}
	}
	return messages
}
