package protocol

import "time"

const DefaultSubjectPrefix = "tts"

// TTSRequest asks for text to be rendered. Options may carry any of the
// provider option names; omitted ones fall back to the provider defaults.
type TTSRequest struct {
	SessionID string         `json:"session_id"`
	Text      string         `json:"text"`
	Language  string         `json:"language,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	Target    string         `json:"target,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
}

// TTSAudio carries a complete encoded audio payload.
type TTSAudio struct {
	SessionID string    `json:"session_id"`
	Target    string    `json:"target,omitempty"`
	Encoding  string    `json:"encoding"`
	Audio     []byte    `json:"audio"`
	Timestamp time.Time `json:"timestamp"`
}

// TTSStatus closes a request. Error is set when nothing was synthesized.
type TTSStatus struct {
	SessionID string    `json:"session_id"`
	Target    string    `json:"target,omitempty"`
	Completed bool      `json:"completed"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TTSReply answers a request that carried a reply subject.
type TTSReply struct {
	Status TTSStatus `json:"status"`
	Audio  *TTSAudio `json:"audio,omitempty"`
}

// TTSInfo describes what the provider supports.
type TTSInfo struct {
	DefaultLanguage string              `json:"default_language,omitempty"`
	Languages       []string            `json:"languages"`
	Options         []string            `json:"options"`
	Formats         []string            `json:"formats"`
	Voices          map[string][]string `json:"voices"`
}

type Subjects struct {
	Request string
	Audio   string
	Done    string
	Info    string
}

// TTSSubjects derives the subject names under prefix.
func TTSSubjects(prefix string) Subjects {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return Subjects{
		Request: prefix + ".request",
		Audio:   prefix + ".audio",
		Done:    prefix + ".done",
		Info:    prefix + ".info",
	}
}
