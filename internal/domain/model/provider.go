package model

// ProviderKey identifies one external transcription service.
type ProviderKey string

const (
	ProviderOpenAIWhisper ProviderKey = "OPENAI_WHISPER"
	ProviderAssemblyAI    ProviderKey = "ASSEMBLYAI"
	ProviderGoogleGemini  ProviderKey = "GOOGLE_GEMINI"
	ProviderAWSTranscribe ProviderKey = "AWS_TRANSCRIBE"
	ProviderElevenLabs    ProviderKey = "ELEVENLABS"
	ProviderDeepgram      ProviderKey = "DEEPGRAM"
	ProviderGladia        ProviderKey = "GLADIA"
	ProviderSpeechmatics  ProviderKey = "SPEECHMATICS"
	ProviderOpenRouter    ProviderKey = "OPENROUTER"
)

func (k ProviderKey) String() string { return string(k) }
