package protocol

// TTS states sent by gateways.
const (
	TtsStart         = "start"
	TtsSentenceStart = "sentence_start"
	TtsSentenceEnd   = "sentence_end"
	TtsStop          = "stop"
)

// Response is a decoded inbound message: Object, Tts or Event.
type Response interface {
	ResponseType() string
}

// Object is a decoded message the dialect has no typed shape for. It is
// passed through unchanged.
type Object map[string]any

func (o Object) ResponseType() string {
	value, _ := o["type"].(string)
	return value
}

// String returns the string value of key, or "".
func (o Object) String(key string) string {
	value, _ := o[key].(string)
	return value
}

// Tts is one fragment of a streamed speech response.
type Tts struct {
	SessionID   string
	State       string
	Text        string
	Audio       *AudioParams
	EndOfStream bool
}

func (Tts) ResponseType() string { return TypeTts }
