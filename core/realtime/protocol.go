// Package realtime defines the message shapes exchanged with a live
// conversational service and the options used to open a channel to one.
package realtime

const MIMETypeJPEG = "image/jpeg"

// ClientMessage is a single outbound frame. Exactly one field is set.
type ClientMessage struct {
	Setup         *Setup         `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
}

type Setup struct {
	Model                    string            `json:"model"`
	GenerationConfig         *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *Content          `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

type SpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type RealtimeInput struct {
	Media *Blob `json:"media,omitempty"`
}

// Blob carries base64 encoded media together with its type.
type Blob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// NewAudioInput wraps an already base64 encoded PCM block.
func NewAudioInput(data, mimeType string) ClientMessage {
	return ClientMessage{RealtimeInput: &RealtimeInput{Media: &Blob{Data: data, MIMEType: mimeType}}}
}

// NewVideoInput wraps an already base64 encoded JPEG frame.
func NewVideoInput(data string) ClientMessage {
	return ClientMessage{RealtimeInput: &RealtimeInput{Media: &Blob{Data: data, MIMEType: MIMETypeJPEG}}}
}

// ServerMessage is a single inbound frame.
type ServerMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	GoAway        *GoAway        `json:"goAway,omitempty"`
}

type ServerContent struct {
	ModelTurn           *ModelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

type ModelTurn struct {
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

type Transcription struct {
	Text string `json:"text,omitempty"`
}

type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// AudioPayloads returns the base64 inline data of every model turn part in
// order.
func (c *ServerContent) AudioPayloads() []string {
	if c == nil || c.ModelTurn == nil {
		return nil
	}

	var payloads []string
	for _, part := range c.ModelTurn.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			payloads = append(payloads, part.InlineData.Data)
		}
	}
	return payloads
}
