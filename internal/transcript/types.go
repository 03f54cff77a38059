package transcript

// Chunk is a single speaker turn extracted from a captioned transcript.
// Numbers start at 1 and are strictly increasing in source order.
type Chunk struct {
	Number  int    `json:"chunk_number"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// UnknownSpeaker is assigned when a caption block carries no speaker prefix.
const UnknownSpeaker = "Unknown"
