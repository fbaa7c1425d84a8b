package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// callFingerprint identifies a tool call by name plus canonicalized
// arguments: JSON key order and whitespace do not matter, so the model
// re-issuing the same read with shuffled fields still counts as a repeat.
func callFingerprint(name string, arguments json.RawMessage) string {
	canon := []byte(arguments)
	var decoded interface{}
	if err := json.Unmarshal(arguments, &decoded); err == nil {
		if enc, err := json.Marshal(decoded); err == nil {
			canon = enc
		}
	}
	h := sha256.Sum256(canon)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// recentCallFingerprints returns fingerprints of the last n tool calls in
// chronological order, looking through text-only turns.
func recentCallFingerprints(history []Turn, n int) []string {
	var all []string
	for _, turn := range history {
		if turn.Kind != TurnAssistant || turn.Assistant == nil {
			continue
		}
		for _, tc := range turn.Assistant.ToolCalls {
			all = append(all, callFingerprint(tc.Name, tc.Arguments))
		}
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// DetectLoop reports whether the last windowSize tool calls cycle through
// a repeating pattern of up to three calls. Paginated reads advance a
// cursor argument on every call and formula sweeps walk distinct cells,
// so legitimate sequential work never fingerprints as a loop; only
// literally identical call sequences do.
func DetectLoop(history []Turn, windowSize int) bool {
	fps := recentCallFingerprints(history, windowSize)
	if len(fps) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3 && patternLen*2 <= windowSize; patternLen++ {
		periodic := true
		for i := patternLen; i < len(fps); i++ {
			if fps[i] != fps[i-patternLen] {
				periodic = false
				break
			}
		}
		if periodic {
			return true
		}
	}
	return false
}
