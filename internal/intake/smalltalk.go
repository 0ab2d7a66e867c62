package intake

import (
	"regexp"
	"strings"
)

// Greetings and pleasantries are deflected instead of classified, so a
// bare "hi" never becomes a complaint narrative.
var greetingRe = regexp.MustCompile(`(?i)^(hi|hello|hey|hii|hlo|helo|namaste|hola|yo|good\s*(morning|evening|afternoon))[\W_]*$`)

var smalltalkReplies = []struct {
	re    *regexp.Regexp
	reply string
}{
	{regexp.MustCompile(`(?i)^how\s+are\s+you\b`), "I am doing well, thank you. " + promptDescribe},
	{regexp.MustCompile(`(?i)^(thanks|thank\s+you|thx)[\W_]*$`), "You're welcome!"},
	{regexp.MustCompile(`(?i)^(who\s+are\s+you|what\s+can\s+you\s+do)[\W_]*$`), "I am the complaint desk assistant. " + promptDescribe},
}

var yesWords = map[string]bool{
	"yes": true, "y": true, "ok": true, "okay": true, "confirm": true, "confirmed": true,
}

var noWords = map[string]bool{
	"no": true, "n": true, "nah": true, "nope": true,
}

var cancelWords = map[string]bool{
	"cancel": true, "quit": true, "stop": true, "exit": true,
}

func word(text string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), " .,!?")
}

func isYes(text string) bool    { return yesWords[word(text)] }
func isNo(text string) bool     { return noWords[word(text)] }
func isCancel(text string) bool { return cancelWords[word(text)] }

// smalltalkReply answers greetings and pleasantries without touching the
// draft. The second return is false for anything that looks like content.
func smalltalkReply(text string) (string, bool) {
	if greetingRe.MatchString(strings.TrimSpace(text)) {
		return promptIntro, true
	}
	for _, st := range smalltalkReplies {
		if st.re.MatchString(strings.TrimSpace(text)) {
			return st.reply, true
		}
	}
	return "", false
}
