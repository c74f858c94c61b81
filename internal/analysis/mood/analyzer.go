package mood

import (
	"math"
	"strings"
)

// Tone is a coarse emotional register used to tag transcript entries and to
// pick a synthesis tone for spoken replies.
type Tone string

const (
	Neutral  Tone = "neutral"
	Anxious  Tone = "anxious"
	Sad      Tone = "sad"
	Angry    Tone = "angry"
	Hopeful  Tone = "hopeful"
	Calm     Tone = "calm"
	Comfort  Tone = "comfort"
	Grounded Tone = "grounded"
)

// Decision carries the detected tone and a recommended intensity.
type Decision struct {
	Tone  Tone
	Scale float32
	Score int
}

var keywordBuckets = map[Tone][]string{
	Anxious: {
		"anxious", "anxiety", "worried", "worry", "nervous", "panic", "panicking",
		"overwhelmed", "stressed", "stress", "on edge", "racing thoughts", "can't sleep",
		"restless", "tense", "dread", "scared", "afraid",
	},
	Sad: {
		"sad", "down", "depressed", "depressing", "hopeless", "lonely", "alone",
		"cry", "crying", "grief", "grieving", "empty", "numb", "worthless",
		"miserable", "heartbroken", "lost",
	},
	Angry: {
		"angry", "furious", "mad", "rage", "frustrated", "frustrating", "fed up",
		"annoyed", "irritated", "resent", "unfair", "hate",
	},
	Hopeful: {
		"better", "improving", "hopeful", "hope", "progress", "proud", "grateful",
		"thankful", "excited", "looking forward", "good day", "great day", "happy",
	},
	Calm: {
		"calm", "calmer", "relaxed", "peaceful", "at ease", "settled", "rested",
		"breathing", "slowed down", "centered",
	},
	Comfort: {
		"i'm here", "you're not alone", "that sounds hard", "be kind to yourself",
		"take your time", "one step", "it's okay", "understandable", "makes sense",
		"tell me more", "i hear you", "thank you for sharing",
	},
	Grounded: {
		"let's try", "notice", "focus on", "name five", "breathe in", "exercise",
		"ground yourself", "right now", "this moment", "slowly",
	},
}

// Analyze infers the tone for a finished turn. The bot reply wins when it
// carries a clear register; otherwise the user's mood maps to the register a
// reply should take (sadness gets comfort, anger gets grounding).
func Analyze(userText, botText string) Decision {
	userScore := scoreText(userText)
	botScore := scoreText(botText)

	final := botScore
	if final.Score == 0 && userScore.Score > 0 {
		final = respondTo(userScore)
	}

	if final.Score == 0 {
		return Decision{Tone: Neutral, Scale: 3}
	}

	scale := 2 + float32(final.Score)/4
	if final.Tone == Comfort || final.Tone == Calm {
		scale = float32(math.Min(3.5, float64(scale)))
	}
	if scale < 1 {
		scale = 1
	}
	if scale > 5 {
		scale = 5
	}

	return Decision{Tone: final.Tone, Scale: scale, Score: final.Score}
}

// ScoreUtterance classifies a single utterance, used to tag user messages.
func ScoreUtterance(text string) Decision {
	return scoreText(text)
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Tone: Neutral}
	}

	scores := make(map[Tone]int)
	for tone, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[tone] += 3
			}
		}
	}

	bestTone := Neutral
	bestScore := 0
	for tone, s := range scores {
		if s > bestScore {
			bestScore = s
			bestTone = tone
		}
	}

	if bestScore == 0 {
		return Decision{Tone: Neutral}
	}
	return Decision{Tone: bestTone, Score: bestScore}
}

// respondTo maps a user's mood to the register a reply should carry.
func respondTo(user Decision) Decision {
	switch user.Tone {
	case Sad, Anxious:
		return Decision{Tone: Comfort, Score: user.Score}
	case Angry:
		return Decision{Tone: Grounded, Score: user.Score}
	case Hopeful:
		return Decision{Tone: Hopeful, Score: user.Score}
	case Calm:
		return Decision{Tone: Calm, Score: user.Score}
	default:
		return user
	}
}
