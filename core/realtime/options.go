package realtime

import "github.com/koscakluka/ema-live/core/audio"

type OpenOptions struct {
	Model             string
	Voice             string
	SystemInstruction string

	InputEncoding  audio.EncodingInfo
	OutputEncoding audio.EncodingInfo

	// TranscribeInput and TranscribeOutput request transcription fragments
	// for the user and assistant audio respectively.
	TranscribeInput  bool
	TranscribeOutput bool
}

type OpenOption func(*OpenOptions)

func NewOpenOptions(opts ...OpenOption) OpenOptions {
	options := OpenOptions{
		InputEncoding:    audio.GetDefaultEncodingInfo(),
		OutputEncoding:   audio.GetDefaultOutputEncodingInfo(),
		TranscribeInput:  true,
		TranscribeOutput: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithModel(model string) OpenOption {
	return func(o *OpenOptions) {
		o.Model = model
	}
}

func WithVoice(voice string) OpenOption {
	return func(o *OpenOptions) {
		o.Voice = voice
	}
}

func WithSystemInstruction(instruction string) OpenOption {
	return func(o *OpenOptions) {
		o.SystemInstruction = instruction
	}
}

func WithInputEncoding(encoding audio.EncodingInfo) OpenOption {
	return func(o *OpenOptions) {
		o.InputEncoding = encoding
	}
}

func WithOutputEncoding(encoding audio.EncodingInfo) OpenOption {
	return func(o *OpenOptions) {
		o.OutputEncoding = encoding
	}
}

func WithTranscription(input, output bool) OpenOption {
	return func(o *OpenOptions) {
		o.TranscribeInput = input
		o.TranscribeOutput = output
	}
}

// Setup renders the options as the first message of a session.
func (o OpenOptions) Setup() ClientMessage {
	setup := &Setup{
		Model:            o.Model,
		GenerationConfig: &GenerationConfig{ResponseModalities: []string{"AUDIO"}},
	}

	if o.Voice != "" {
		speech := &SpeechConfig{}
		speech.VoiceConfig.PrebuiltVoiceConfig.VoiceName = o.Voice
		setup.GenerationConfig.SpeechConfig = speech
	}
	if o.SystemInstruction != "" {
		setup.SystemInstruction = &Content{Parts: []Part{{Text: o.SystemInstruction}}}
	}
	if o.TranscribeInput {
		setup.InputAudioTranscription = &struct{}{}
	}
	if o.TranscribeOutput {
		setup.OutputAudioTranscription = &struct{}{}
	}

	return ClientMessage{Setup: setup}
}
