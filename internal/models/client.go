package models

import "time"

// Gender codes follow the mobile client contract: 0 unknown, 1 male, 2 female.
type Gender int

const (
	GenderUnknown Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

func (g Gender) Spoken() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "don't want to disclose"
	}
}

type Client struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Gender   Gender    `json:"gender"`
	Language string    `json:"language"`
	Created  time.Time `json:"created"`
}

type Therapist struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Gender          Gender  `json:"gender"`
	VoiceID         string  `json:"voice_id"`
	Description     string  `json:"description"`
	AudioPreviewURL *string `json:"audio_preview_url,omitempty"`
}
