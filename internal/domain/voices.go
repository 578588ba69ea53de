package domain

// Voice is a speech-provider voice offered to users.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultVoiceID is used when the caller does not pick a voice.
const DefaultVoiceID = "EXAVITQu4vr4xnSDxMaL"

// AvailableVoices is the curated ElevenLabs voice catalog.
var AvailableVoices = []Voice{
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah (Female)"},
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel (Female)"},
	{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi (Female)"},
	{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni (Male)"},
	{ID: "VR6AewLTigWG4xSOukaG", Name: "Arnold (Male)"},
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam (Male)"},
}

// KnownVoice reports whether id is part of the catalog.
func KnownVoice(id string) bool {
	for _, v := range AvailableVoices {
		if v.ID == id {
			return true
		}
	}
	return false
}
